package core

import "go.opentelemetry.io/otel/trace"

// WithEvaluator sets the datamodel evaluator.
func WithEvaluator(e Evaluator) Option {
	return func(m *Machine) {
		if e != nil {
			m.evaluator = e
		}
	}
}

// WithErrorReporter sets the diagnostics sink.
func WithErrorReporter(r ErrorReporter) Option {
	return func(m *Machine) {
		m.reporter = r
	}
}

// WithLogger sets the logger. A nil logger falls back to stderr.
func WithLogger(l Logger) Option {
	return func(m *Machine) {
		m.logger = normalizeLogger(l)
	}
}

// WithListener adds a configuration listener.
func WithListener(l Listener) Option {
	return func(m *Machine) {
		if l != nil {
			m.listeners = append(m.listeners, l)
		}
	}
}

// WithEventSource adds a source drained into the external queue by Run.
func WithEventSource(s EventSource) Option {
	return func(m *Machine) {
		if s != nil {
			m.sources = append(m.sources, s)
		}
	}
}

// WithPersister saves a snapshot after every macrostep.
func WithPersister(p Persister) Option {
	return func(m *Machine) {
		m.persister = p
	}
}

// WithPublisher publishes a StepRecord after every macrostep.
func WithPublisher(pb Publisher) Option {
	return func(m *Machine) {
		m.publisher = pb
	}
}

// WithInvokerRegistry shares an invoker registry.
func WithInvokerRegistry(r *InvokerRegistry) Option {
	return func(m *Machine) {
		if r != nil {
			m.registry = r
		}
	}
}

// WithInvoker registers an invoker factory for a type on the machine's registry.
func WithInvoker(typ string, factory InvokerFactory) Option {
	return func(m *Machine) {
		m.registry.Register(typ, factory)
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Machine) {
		if tp != nil {
			m.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithMicrostepLimit bounds the microsteps of one macrostep. Zero disables the bound.
func WithMicrostepLimit(n int) Option {
	return func(m *Machine) {
		if n >= 0 {
			m.microstepLimit = n
		}
	}
}

// WithLegalityCheck toggles the configuration check after each macrostep.
func WithLegalityCheck(enabled bool) Option {
	return func(m *Machine) {
		m.legality = enabled
	}
}

// WithStrictLegality makes an illegal configuration fail the step that produced it.
func WithStrictLegality(strict bool) Option {
	return func(m *Machine) {
		m.strict = strict
		if strict {
			m.legality = true
		}
	}
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) Option {
	return func(m *Machine) {
		if id != "" {
			m.sessionID = id
		}
	}
}

// WithName overrides the document name.
func WithName(name string) Option {
	return func(m *Machine) {
		m.name = name
	}
}

// WithParent binds the machine to the invocation that created it.
func WithParent(p Parent, invokeID string) Option {
	return func(m *Machine) {
		m.parent = p
		m.parentInvokeID = invokeID
	}
}

// WithInitialData seeds the datamodel; values replace data declarations of the same name.
func WithInitialData(data map[string]any) Option {
	return func(m *Machine) {
		if len(data) == 0 {
			return
		}
		m.initialData = make(map[string]any, len(data))
		for k, v := range data {
			m.initialData[k] = v
		}
	}
}
