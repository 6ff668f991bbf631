// SPDX-License-Identifier: MIT
package audio

import "cqtscope/internal/config"

// Downmix selects how interleaved multi-channel input becomes mono.
type Downmix int

const (
	DownmixFirst   Downmix = iota // Keep channel 0.
	DownmixAverage                // Mean of all channels.
)

// ParseDownmix maps a config value to a Downmix. Unknown values select
// DownmixFirst.
func ParseDownmix(s string) Downmix {
	if s == config.DownmixAverage {
		return DownmixAverage
	}
	return DownmixFirst
}

// downmix writes len(dst) mono samples from interleaved, which must hold
// at least len(dst)*channels samples.
func downmix(dst, interleaved []float32, channels int, mode Downmix) {
	if channels <= 1 {
		copy(dst, interleaved)
		return
	}
	switch mode {
	case DownmixAverage:
		scale := 1 / float32(channels)
		for i := range dst {
			frame := interleaved[i*channels : (i+1)*channels]
			var sum float32
			for _, v := range frame {
				sum += v
			}
			dst[i] = sum * scale
		}
	default:
		for i := range dst {
			dst[i] = interleaved[i*channels]
		}
	}
}
