package profiler

import (
	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/backend"
)

// instrumentedBackend counts the traffic of the calls it forwards. Calls it does not override go
// straight to the embedded backend.
type instrumentedBackend struct {
	backend.Backend
	c *counters
}

// instrumentedFrameBackend is an instrumentedBackend whose inner backend presents to a surface.
type instrumentedFrameBackend struct {
	*instrumentedBackend
	backend.FrameBackend
}

var (
	_ backend.Backend      = &instrumentedBackend{}
	_ backend.FrameBackend = &instrumentedFrameBackend{}
)

func (b *instrumentedBackend) count(err error) error {
	if err != nil {
		b.c.failures.Add(1)
	}
	return err
}

func (b *instrumentedBackend) BindBuffer(target common.TargetKind, h backend.Handle) error {
	b.c.binds.Add(1)
	return b.count(b.Backend.BindBuffer(target, h))
}

func (b *instrumentedBackend) BindVertexArray(h backend.Handle) error {
	b.c.binds.Add(1)
	return b.count(b.Backend.BindVertexArray(h))
}

func (b *instrumentedBackend) UseProgram(h backend.Handle) error {
	b.c.binds.Add(1)
	return b.count(b.Backend.UseProgram(h))
}

func (b *instrumentedBackend) UploadFull(target common.TargetKind, sizeBytes int, data []byte, usage common.UsageHint) error {
	b.c.uploads.Add(1)
	b.c.uploadBytes.Add(uint64(len(data)))
	return b.count(b.Backend.UploadFull(target, sizeBytes, data, usage))
}

func (b *instrumentedBackend) UploadRange(target common.TargetKind, byteOffset int, data []byte) error {
	b.c.uploads.Add(1)
	b.c.uploadBytes.Add(uint64(len(data)))
	return b.count(b.Backend.UploadRange(target, byteOffset, data))
}

func (b *instrumentedBackend) UploadUniform(program backend.Handle, loc backend.Location, value common.UniformValue) error {
	b.c.uniformUploads.Add(1)
	return b.count(b.Backend.UploadUniform(program, loc, value))
}

func (b *instrumentedBackend) Draw(topology common.Topology, first, count int) error {
	b.c.draws.Add(1)
	return b.count(b.Backend.Draw(topology, first, count))
}

func (b *instrumentedBackend) DrawIndexed(topology common.Topology, indexType common.ElementType, count int) error {
	b.c.draws.Add(1)
	return b.count(b.Backend.DrawIndexed(topology, indexType, count))
}
