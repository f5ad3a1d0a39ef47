// Package gpu holds the GPU-facing glue of the ribbon engine: uploading
// decoded tile layers as textures through a gpucontext texture creator, and
// compiling the dual-tile flow blend shader from WGSL to SPIR-V.
//
// The engine never creates a GPU device itself. It receives one from the
// host application via gpucontext.DeviceProvider and uploads derived copies
// of the CPU tile pixels, which remain the source of truth.
package gpu
