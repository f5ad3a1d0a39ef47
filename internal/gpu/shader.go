package gpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// flowShaderWGSL blends two adjacent tiles of the strip by the flow offset.
// The vertex stage passes ribbon UVs through; the fragment stage samples the
// current tile and its successor and mixes by the blend uniform, which the
// render loop updates every frame from the live flow offset.
const flowShaderWGSL = `
struct FlowUniforms {
    blend: f32,
    layer: f32,
    _pad0: f32,
    _pad1: f32,
};

@group(0) @binding(0) var tile_current: texture_2d<f32>;
@group(0) @binding(1) var tile_next: texture_2d<f32>;
@group(0) @binding(2) var tile_sampler: sampler;
@group(0) @binding(3) var<uniform> flow: FlowUniforms;

struct VertexOut {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
};

@vertex
fn vs_main(@location(0) pos: vec3<f32>, @location(1) uv: vec2<f32>) -> VertexOut {
    var out: VertexOut;
    out.position = vec4<f32>(pos, 1.0);
    out.uv = uv;
    return out;
}

@fragment
fn fs_main(in: VertexOut) -> @location(0) vec4<f32> {
    let cur = textureSample(tile_current, tile_sampler, in.uv);
    let nxt = textureSample(tile_next, tile_sampler, in.uv);
    return mix(cur, nxt, clamp(flow.blend, 0.0, 1.0));
}
`

var (
	flowShaderOnce sync.Once
	flowShaderCode []uint32
	flowShaderErr  error
)

// FlowShaderSPIRV compiles the flow blend shader to SPIR-V words.
// Compilation happens once; the result is cached for the process lifetime.
func FlowShaderSPIRV() ([]uint32, error) {
	flowShaderOnce.Do(func() {
		flowShaderCode, flowShaderErr = compileToSPIRV(flowShaderWGSL)
	})
	return flowShaderCode, flowShaderErr
}

// compileToSPIRV compiles WGSL source to SPIR-V uint32 words.
func compileToSPIRV(wgslSource string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgslSource)
	if err != nil {
		return nil, fmt.Errorf("failed to compile shader: %w", err)
	}

	// SPIR-V is little-endian 32-bit words.
	spirvCode := make([]uint32, len(spirvBytes)/4)
	for i := range spirvCode {
		spirvCode[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return spirvCode, nil
}

// DeviceOf extracts the HAL device from a host provider. Providers that
// share their device expose it through HalDevice() any; everything else
// reports false and the GPU flow pipeline stays unavailable.
func DeviceOf(provider any) (hal.Device, bool) {
	type halProvider interface {
		HalDevice() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, false
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, false
	}
	return device, true
}

// NewShaderModule creates a HAL shader module from SPIR-V code.
func NewShaderModule(device hal.Device, label string, spirvCode []uint32) (hal.ShaderModule, error) {
	return device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label: label,
		Source: hal.ShaderSource{
			SPIRV: spirvCode,
		},
	})
}

// Resources collects the HAL objects of one flow pipeline so they can be
// destroyed in the correct order.
type Resources struct {
	Device       hal.Device
	ShaderModule hal.ShaderModule
	BindLayouts  []hal.BindGroupLayout
}

// Destroy cleans up all GPU resources. Safe on a zero value.
func (r *Resources) Destroy() {
	if r.Device == nil {
		return
	}
	for _, l := range r.BindLayouts {
		if l != nil {
			r.Device.DestroyBindGroupLayout(l)
		}
	}
	r.BindLayouts = nil
	if r.ShaderModule != nil {
		r.Device.DestroyShaderModule(r.ShaderModule)
		r.ShaderModule = nil
	}
}
