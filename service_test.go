package buildwire

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildwire/buildwire-go/wire"
)

// fakeWorker collects the frames a service writes and can inject worker
// traffic back through Ingress.
type fakeWorker struct {
	t       *testing.T
	service *Service
	sent    []wire.Packet
}

func newFakeWorker(t *testing.T) *fakeWorker {
	fw := &fakeWorker{t: t}
	fw.service = NewService(func(frame []byte) error {
		require.GreaterOrEqual(t, len(frame), 4)
		n := binary.LittleEndian.Uint32(frame[:4])
		require.Equal(t, int(n), len(frame)-4)
		p, err := wire.DecodePacket(frame[4:])
		require.NoError(t, err)
		fw.sent = append(fw.sent, p)
		return nil
	}, false)
	return fw
}

func (fw *fakeWorker) lastSent() wire.Packet {
	require.NotEmpty(fw.t, fw.sent)
	return fw.sent[len(fw.sent)-1]
}

func (fw *fakeWorker) respond(id uint32, value map[string]interface{}) {
	frame, err := wire.EncodePacket(wire.Packet{ID: id, Value: value})
	require.NoError(fw.t, err)
	require.NoError(fw.t, fw.service.Ingress(frame))
}

func (fw *fakeWorker) request(id uint32, value map[string]interface{}) {
	frame, err := wire.EncodePacket(wire.Packet{ID: id, IsRequest: true, Value: value})
	require.NoError(fw.t, err)
	require.NoError(fw.t, fw.service.Ingress(frame))
}

func TestServiceBuildSuccess(t *testing.T) {
	fw := newFakeWorker(t)

	var gotResult *BuildResult
	var gotErr error
	called := 0
	fw.service.Build(BuildOptions{EntryPoints: []string{"in.js"}, Bundle: true}, false, func(r *BuildResult, err error) {
		called++
		gotResult, gotErr = r, err
	})

	sent := fw.lastSent()
	assert.True(t, sent.IsRequest)
	assert.Equal(t, "build", sent.Value["command"])
	assert.Equal(t, []interface{}{"--bundle", "in.js"}, sent.Value["flags"])
	assert.Equal(t, false, sent.Value["write"])
	assert.Zero(t, called)

	fw.respond(sent.ID, map[string]interface{}{
		"outputFiles": []interface{}{
			map[string]interface{}{"path": "out.js", "contents": []byte("js!")},
		},
		"warnings": []interface{}{
			map[string]interface{}{"text": "careful"},
		},
	})

	require.Equal(t, 1, called)
	require.NoError(t, gotErr)
	require.Len(t, gotResult.OutputFiles, 1)
	assert.Equal(t, "out.js", gotResult.OutputFiles[0].Path)
	assert.Equal(t, []byte("js!"), gotResult.OutputFiles[0].Contents)
	require.Len(t, gotResult.Warnings, 1)
	assert.Equal(t, "careful", gotResult.Warnings[0].Text)
}

func TestServiceBuildDiagnosticsBecomeBuildError(t *testing.T) {
	fw := newFakeWorker(t)

	var gotErr error
	fw.service.Build(BuildOptions{EntryPoints: []string{"in.js"}}, false, func(r *BuildResult, err error) {
		assert.Nil(t, r)
		gotErr = err
	})

	fw.respond(fw.lastSent().ID, map[string]interface{}{
		"errors": []interface{}{
			map[string]interface{}{
				"text": "unexpected token",
				"location": map[string]interface{}{
					"file": "in.js", "line": 2, "column": 5,
				},
			},
		},
	})

	var buildErr *BuildError
	require.ErrorAs(t, gotErr, &buildErr)
	assert.Equal(t, "Build failed with 1 error:\nin.js:2:5: error: unexpected token", buildErr.Error())
	assert.Len(t, buildErr.Errors, 1)
}

func TestServiceLocalErrorRoutesThroughChannel(t *testing.T) {
	fw := newFakeWorker(t)

	var gotErr error
	called := 0
	fw.service.Build(BuildOptions{EntryPoints: []string{"-bad"}}, false, func(r *BuildResult, err error) {
		called++
		gotErr = err
	})

	// The failure still travels as a request so the callback stays async.
	sent := fw.lastSent()
	assert.Equal(t, "error", sent.Value["command"])
	assert.Contains(t, sent.Value["error"], "invalid entry point")
	assert.Zero(t, called)

	fw.respond(sent.ID, nil)
	require.Equal(t, 1, called)
	require.Error(t, gotErr)
	assert.Contains(t, gotErr.Error(), "invalid entry point")
}

func TestServicePluginRoundTrip(t *testing.T) {
	fw := newFakeWorker(t)

	contents := "export {}"
	var p Plugin
	require.NoError(t, p.SetName("shim"))
	require.NoError(t, p.OnLoad(`\.js$`, false, LoaderFunc(func(args OnLoadArgs) (*OnLoadResult, error) {
		return &OnLoadResult{Contents: &contents, Loader: "js"}, nil
	})))

	done := false
	fw.service.Build(BuildOptions{
		EntryPoints: []string{"in.js"},
		Plugins:     []*Plugin{&p},
	}, false, func(r *BuildResult, err error) {
		require.NoError(t, err)
		done = true
	})

	build := fw.lastSent()
	descriptors, ok := build.Value["plugins"].([]interface{})
	require.True(t, ok)
	require.Len(t, descriptors, 1)
	desc := descriptors[0].(map[string]interface{})
	key := desc["key"].(int)
	assert.Equal(t, "shim", desc["name"])

	// Worker asks the host to run the loader mid-build.
	fw.request(900, map[string]interface{}{
		"command": "plugin",
		"key":     key,
		"index":   0,
		"path":    "src/in.js",
	})

	reply := fw.lastSent()
	assert.False(t, reply.IsRequest)
	assert.Equal(t, uint32(900), reply.ID)
	assert.Equal(t, []byte(contents), reply.Value["contents"])
	assert.Equal(t, "js", reply.Value["loader"])

	fw.respond(build.ID, map[string]interface{}{})
	assert.True(t, done)

	// The registration died with the build.
	fw.request(901, map[string]interface{}{
		"command": "plugin",
		"key":     key,
		"index":   0,
		"path":    "src/in.js",
	})
	late := fw.lastSent()
	assert.Equal(t, uint32(901), late.ID)
	assert.Contains(t, late.Value["error"], "no plugins registered")
}

func TestServiceSyncRejectsPlugins(t *testing.T) {
	var sent []wire.Packet
	s := NewService(func(frame []byte) error {
		p, err := wire.DecodePacket(frame[4:])
		require.NoError(t, err)
		sent = append(sent, p)
		return nil
	}, true)

	var p Plugin
	require.NoError(t, p.SetName("shim"))
	require.NoError(t, p.OnLoad(`.`, false, passthroughLoader()))

	var gotErr error
	s.Build(BuildOptions{EntryPoints: []string{"in.js"}, Plugins: []*Plugin{&p}}, false, func(r *BuildResult, err error) {
		gotErr = err
	})

	require.Len(t, sent, 1)
	assert.Equal(t, "error", sent[0].Value["command"])

	frame, err := wire.EncodePacket(wire.Packet{ID: sent[0].ID})
	require.NoError(t, err)
	require.NoError(t, s.Ingress(frame))
	require.Error(t, gotErr)
	assert.Contains(t, gotErr.Error(), "synchronous")
}

func TestServiceTransform(t *testing.T) {
	fw := newFakeWorker(t)

	var gotResult *TransformResult
	fw.service.Transform("let x: number = 1", TransformOptions{Loader: "ts"}, false, func(r *TransformResult, err error) {
		require.NoError(t, err)
		gotResult = r
	})

	sent := fw.lastSent()
	assert.Equal(t, "transform", sent.Value["command"])
	assert.Equal(t, "let x: number = 1", sent.Value["input"])
	assert.Equal(t, []interface{}{"--loader=ts"}, sent.Value["flags"])

	fw.respond(sent.ID, map[string]interface{}{
		"js":          "let x = 1;\n",
		"jsSourceMap": "{}",
	})

	require.NotNil(t, gotResult)
	assert.Equal(t, "let x = 1;\n", gotResult.JS)
	assert.Equal(t, "{}", gotResult.JSSourceMap)
}

func TestServiceTransformDiagnostics(t *testing.T) {
	fw := newFakeWorker(t)

	var gotErr error
	fw.service.Transform("}{", TransformOptions{}, false, func(r *TransformResult, err error) {
		gotErr = err
	})

	fw.respond(fw.lastSent().ID, map[string]interface{}{
		"errors": []interface{}{map[string]interface{}{"text": "unbalanced"}},
	})

	var buildErr *BuildError
	require.ErrorAs(t, gotErr, &buildErr)
	assert.Contains(t, buildErr.Error(), "Transform failed with 1 error:")
}

func TestServiceUnknownCommandAnswered(t *testing.T) {
	fw := newFakeWorker(t)

	fw.request(42, map[string]interface{}{"command": "reboot"})

	reply := fw.lastSent()
	assert.Equal(t, uint32(42), reply.ID)
	assert.False(t, reply.IsRequest)
	assert.Contains(t, reply.Value["error"], `unknown command "reboot"`)
}

func TestServicePanickyLoaderAnswered(t *testing.T) {
	fw := newFakeWorker(t)

	var p Plugin
	require.NoError(t, p.SetName("boom"))
	require.NoError(t, p.OnLoad(`.`, false, LoaderFunc(func(OnLoadArgs) (*OnLoadResult, error) {
		panic("loader exploded")
	})))

	fw.service.Build(BuildOptions{EntryPoints: []string{"in.js"}, Plugins: []*Plugin{&p}}, false, func(*BuildResult, error) {})
	build := fw.lastSent()
	desc := build.Value["plugins"].([]interface{})[0].(map[string]interface{})

	fw.request(7, map[string]interface{}{
		"command": "plugin",
		"key":     desc["key"],
		"index":   0,
		"path":    "x",
	})

	reply := fw.lastSent()
	assert.Equal(t, uint32(7), reply.ID)
	assert.Contains(t, reply.Value["error"], "loader exploded")
}

func TestServiceCloseFailsPending(t *testing.T) {
	fw := newFakeWorker(t)

	var gotErr error
	fw.service.Build(BuildOptions{EntryPoints: []string{"in.js"}}, false, func(r *BuildResult, err error) {
		gotErr = err
	})

	fw.service.Close()
	assert.ErrorIs(t, gotErr, wire.ErrStopped)

	// Closing again is a no-op.
	fw.service.Close()
}
