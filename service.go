package buildwire

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/buildwire/buildwire-go/internal/logx"
	"github.com/buildwire/buildwire-go/wire"
)

// Service is the call surface over one worker channel. One mutex
// serializes every entry into the channel and the plugin bridge, so the
// lock-free Channel sees the single-writer discipline it requires even
// when the transport's reader goroutine and callers interleave.
type Service struct {
	mu      sync.Mutex
	channel *wire.Channel
	bridge  *Bridge
	isSync  bool
	log     zerolog.Logger
}

// NewService wires a service around an outbound byte sink. isSync declares
// a synchronous transport: plugin registration is rejected in that mode,
// because a plugin invocation needs its response to arrive asynchronously
// relative to the build that registered it.
func NewService(write func(frame []byte) error, isSync bool) *Service {
	s := &Service{
		bridge: NewBridge(),
		isSync: isSync,
		log:    logx.Log.With().Str("component", "service").Logger(),
	}
	s.channel = wire.NewChannel(write, s.handleRequest)
	return s
}

// Ingress feeds bytes arriving from the worker's output stream. Responses
// and inbound requests completed by the chunk are dispatched before
// Ingress returns. An error means the stream is desynchronized and the
// service must be closed.
func (s *Service) Ingress(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel.Ingress(chunk)
}

// Close fails every in-flight call and rejects later ones. Idempotent.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channel.Close()
}

// handleRequest dispatches one inbound worker request. The only supported
// command is a plugin invocation; anything else, and any failure while
// locating or running the loader, is reported as an {error} response so
// the worker's correlation always resolves. Runs under the service mutex.
func (s *Service) handleRequest(value map[string]interface{}) (result map[string]interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("plugin callback panicked: %v", r)
		}
	}()

	command, _ := wire.StringField(value, "command")
	if command != "plugin" {
		return nil, fmt.Errorf("unknown command %q", command)
	}
	pluginDispatches.Inc()
	return s.bridge.dispatchValue(value)
}

// sendLocalError reports a failure that happened before any request could
// be sent, through the same asynchronous path a transport failure takes: a
// fire-and-forget "error" request whose response completes the callback.
// Every call thus fails via its callback, never synchronously.
func (s *Service) sendLocalError(cause error, done func(error)) {
	value := map[string]interface{}{
		"command": "error",
		"flags":   []interface{}{},
		"error":   cause.Error(),
	}
	requestsSent.WithLabelValues("error").Inc()
	s.channel.Send(value, func(map[string]interface{}, error) {
		done(cause)
	})
}

// Build issues one build call. The callback fires exactly once with either
// a result or an error; diagnostics returned by a transport-successful
// exchange become a *BuildError.
func (s *Service) Build(opts BuildOptions, isTTY bool, callback func(*BuildResult, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fail := func(err error) {
		s.sendLocalError(err, func(e error) { callback(nil, e) })
	}

	flags, err := flagsForBuildOptions(opts, isTTY)
	if err != nil {
		fail(err)
		return
	}

	value := map[string]interface{}{
		"command": "build",
		"flags":   stringList(flags),
		"write":   opts.Write,
	}

	var key uint32
	registered := false
	if len(opts.Plugins) > 0 {
		if s.isSync {
			fail(fmt.Errorf("plugins are not supported on a synchronous transport"))
			return
		}
		var descriptors []interface{}
		key, descriptors, err = s.bridge.Register(opts.Plugins)
		if err != nil {
			fail(err)
			return
		}
		registered = true
		value["plugins"] = descriptors
	}

	s.log.Debug().Int("flags", len(flags)).Bool("plugins", registered).Msg("sending build request")
	requestsSent.WithLabelValues("build").Inc()
	s.channel.Send(value, func(response map[string]interface{}, err error) {
		// Cleanup always runs, success or failure: the registration's
		// lifetime is exactly the enclosing build's duration.
		if registered {
			s.bridge.Unregister(key)
		}
		if err != nil {
			responsesReceived.WithLabelValues("build", "error").Inc()
			callback(nil, err)
			return
		}
		result, buildErr := decodeBuildResponse(response)
		if buildErr != nil {
			responsesReceived.WithLabelValues("build", "error").Inc()
		} else {
			responsesReceived.WithLabelValues("build", "ok").Inc()
		}
		callback(result, buildErr)
	})
}

// Transform issues one transform call over the same channel.
func (s *Service) Transform(input string, opts TransformOptions, isTTY bool, callback func(*TransformResult, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flags, err := flagsForTransformOptions(opts, isTTY)
	if err != nil {
		s.sendLocalError(err, func(e error) { callback(nil, e) })
		return
	}

	value := map[string]interface{}{
		"command": "transform",
		"flags":   stringList(flags),
		"input":   input,
	}

	requestsSent.WithLabelValues("transform").Inc()
	s.channel.Send(value, func(response map[string]interface{}, err error) {
		if err != nil {
			responsesReceived.WithLabelValues("transform", "error").Inc()
			callback(nil, err)
			return
		}
		result, transformErr := decodeTransformResponse(response)
		if transformErr != nil {
			responsesReceived.WithLabelValues("transform", "error").Inc()
		} else {
			responsesReceived.WithLabelValues("transform", "ok").Inc()
		}
		callback(result, transformErr)
	})
}

func responseMessages(response map[string]interface{}, key string) []Message {
	raw, _ := wire.SliceField(response, key)
	return decodeMessages(raw)
}

func decodeBuildResponse(response map[string]interface{}) (*BuildResult, error) {
	errs := responseMessages(response, "errors")
	warnings := responseMessages(response, "warnings")
	if len(errs) > 0 {
		return nil, aggregateErrors("Build failed", errs, warnings)
	}

	result := &BuildResult{Warnings: warnings}
	if files, ok := wire.SliceField(response, "outputFiles"); ok {
		for _, entry := range files {
			m, ok := entry.(map[string]interface{})
			if !ok {
				continue
			}
			path, _ := wire.StringField(m, "path")
			contents, _ := wire.BytesField(m, "contents")
			result.OutputFiles = append(result.OutputFiles, OutputFile{Path: path, Contents: contents})
		}
	}
	return result, nil
}

func decodeTransformResponse(response map[string]interface{}) (*TransformResult, error) {
	errs := responseMessages(response, "errors")
	warnings := responseMessages(response, "warnings")
	if len(errs) > 0 {
		return nil, aggregateErrors("Transform failed", errs, warnings)
	}

	js, _ := wire.StringField(response, "js")
	sourceMap, _ := wire.StringField(response, "jsSourceMap")
	return &TransformResult{JS: js, JSSourceMap: sourceMap, Warnings: warnings}, nil
}
