package config

import "golang.org/x/sys/cpu"

// CPUFeatures lists the instruction set extensions engines may take fast
// paths for.
type CPUFeatures struct {
	AVX2  bool `json:"avx2"`
	SSSE3 bool `json:"ssse3"`
}

// DetectCPU reports the features of the running processor. AVX2 requires
// the AVX base as well.
func DetectCPU() CPUFeatures {
	return CPUFeatures{
		AVX2:  cpu.X86.HasAVX && cpu.X86.HasAVX2,
		SSSE3: cpu.X86.HasSSSE3,
	}
}
