package goskip

// cacheLineSize is the padding width used to keep the hot listState
// counters off a cache line shared with anything else. The Rust source
// this package is derived from picks the pad per target_arch at compile
// time (128 on x86_64/aarch64/powerpc64, 256 on s390x, 32 on arm/mips/
// riscv64, 64 otherwise); Go has no per-GOARCH constant selection without
// a build-tag file per architecture, so we pick the single 64-byte
// default and keep it uniform across platforms.
const cacheLineSize = 64
