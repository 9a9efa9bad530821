package mandelbulb

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/esimov/marcher"
)

// paintConfig is the decoded form of the opaque paint-parameter buffer
// (layout documented on Params.EncodePaint).
type paintConfig struct {
	ambientColor     [3]float64
	ambientIntensity float64

	lightDir          vec3
	lightColor        [3]float64
	lightAmplitude    float64
	specularSize      float64
	specularIntensity float64

	fogDensity float64
	fogColor   [3]float64
	background [3]float64
	aoStrength float64
}

func decodePaint(data []float64) paintConfig {
	cfg := paintConfig{
		ambientColor:      [3]float64{0.25, 0.25, 0.375},
		ambientIntensity:  0.3,
		lightDir:          vec3{0.577, 0.577, -0.577},
		lightColor:        [3]float64{1, 1, 1},
		lightAmplitude:    1,
		specularSize:      32,
		specularIntensity: 0.5,
		background:        [3]float64{0.02, 0.02, 0.05},
		aoStrength:        0.5,
	}
	if len(data) < 21 {
		return cfg
	}
	cfg.ambientColor = [3]float64{data[0], data[1], data[2]}
	cfg.ambientIntensity = data[3]
	cfg.lightDir = vec3{data[4], data[5], data[6]}.normalize()
	cfg.lightColor = [3]float64{data[7], data[8], data[9]}
	cfg.lightAmplitude = data[10]
	cfg.specularSize = data[11]
	cfg.specularIntensity = data[12]
	cfg.fogDensity = data[13]
	cfg.fogColor = [3]float64{data[14], data[15], data[16]}
	cfg.background = [3]float64{data[17], data[18], data[19]}
	cfg.aoStrength = data[20]
	return cfg
}

// Two-stop surface palette sampled by the smooth-iteration gradient and
// darkened by the orbit trap channel.
var (
	paletteA = [3]float64{0.93, 0.62, 0.35}
	paletteB = [3]float64{0.22, 0.39, 0.74}
)

// Paint shades a completed G-buffer into RGBA bytes: deferred Phong with
// one directional light, ambient term, step-count occlusion and depth fog.
func (k *Kernel) Paint(gbuf, rgba []byte, width, height int, paint []float64) error {
	total := width * height
	if len(gbuf) < total*marcher.GBufRecordSize {
		return fmt.Errorf("mandelbulb: gbuffer too small for %dx%d", width, height)
	}
	if len(rgba) < total*marcher.RGBAPixelSize {
		return fmt.Errorf("mandelbulb: rgba buffer too small for %dx%d", width, height)
	}
	cfg := decodePaint(paint)
	viewDir := vec3{0, 0, 1}

	for i := 0; i < total; i++ {
		rec := gbuf[i*marcher.GBufRecordSize:]
		ri := i * marcher.RGBAPixelSize

		z := binary.LittleEndian.Uint16(rec[6:])
		if z >= 65534 {
			rgba[ri] = toByte(cfg.background[0])
			rgba[ri+1] = toByte(cfg.background[1])
			rgba[ri+2] = toByte(cfg.background[2])
			rgba[ri+3] = 255
			continue
		}

		normal := vec3{
			x: float64(int16(binary.LittleEndian.Uint16(rec[0:]))) / 32767,
			y: float64(int16(binary.LittleEndian.Uint16(rec[2:]))) / 32767,
			z: float64(int16(binary.LittleEndian.Uint16(rec[4:]))) / 32767,
		}.normalize()

		depth := float64(z) / 65535
		ao := 1 - float64(binary.LittleEndian.Uint16(rec[10:]))/65535*cfg.aoStrength
		gradT := float64(binary.LittleEndian.Uint16(rec[12:])) / 65535
		trap := float64(binary.LittleEndian.Uint16(rec[14:])) / 65535

		surf := [3]float64{
			lerp(paletteA[0], paletteB[0], gradT) * (0.5 + 0.5*trap),
			lerp(paletteA[1], paletteB[1], gradT) * (0.5 + 0.5*trap),
			lerp(paletteA[2], paletteB[2], gradT) * (0.5 + 0.5*trap),
		}

		diffuse := math.Max(0, normal.dot(cfg.lightDir)) * cfg.lightAmplitude

		// Blinn-Phong specular against the fixed view direction.
		half := cfg.lightDir.add(viewDir.scale(-1)).normalize()
		spec := 0.0
		if cfg.specularIntensity > 0 {
			spec = math.Pow(math.Max(0, normal.dot(half)), cfg.specularSize) * cfg.specularIntensity
		}

		var col [3]float64
		for c := 0; c < 3; c++ {
			col[c] = cfg.ambientColor[c]*cfg.ambientIntensity*surf[c] +
				diffuse*cfg.lightColor[c]*surf[c] +
				spec*cfg.lightColor[c]
			col[c] *= ao
		}

		if cfg.fogDensity > 0 {
			fog := 1 - math.Exp(-cfg.fogDensity*depth*4)
			for c := 0; c < 3; c++ {
				col[c] = lerp(col[c], cfg.fogColor[c], fog)
			}
		}

		rgba[ri] = toByte(col[0])
		rgba[ri+1] = toByte(col[1])
		rgba[ri+2] = toByte(col[2])
		rgba[ri+3] = 255
	}
	return nil
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func toByte(v float64) byte {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(v*255 + 0.5)
}
