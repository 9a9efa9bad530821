package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gioui.org/app"
	"github.com/esimov/marcher"
	"github.com/esimov/marcher/mandelbulb"
	"github.com/esimov/marcher/utils"
	"golang.org/x/term"
)

const HelpBanner = `
┌┬┐┌─┐┬─┐┌─┐┬ ┬┌─┐┬─┐
│││├─┤├┬┘│  ├─┤├┤ ├┬┘
┴ ┴┴ ┴┴└─└─┘┴ ┴└─┘┴└─

Parallel ray-marched fractal renderer.
    Version: %s

`

// pipeName is the file name that indicates stdout is being used.
const pipeName = "-"

// Version indicates the current build version.
var Version string

var (
	// Flags
	destination = flag.String("out", pipeName, "Output image (png, jpg, bmp)")
	width       = flag.Int("width", 800, "Image width")
	height      = flag.Int("height", 600, "Image height")
	workers     = flag.Int("conc", runtime.NumCPU(), "Number of render workers")
	iterations  = flag.Int("iters", 60, "Maximum fractal iterations")
	formula     = flag.String("formula", "bulb8", "Formula: bulb2, bulb8, box")
	julia       = flag.Bool("julia", false, "Julia mode")
	juliaC      = flag.String("julia-c", "0.35,0.35,0.35", "Julia constant as x,y,z")
	camera      = flag.String("cam", "0,0,-2.5", "Camera position as x,y,z")
	yaw         = flag.Float64("yaw", 0, "Camera yaw in degrees")
	pitch       = flag.Float64("pitch", 0, "Camera pitch in degrees")
	zoom        = flag.Float64("zoom", 1, "Zoom factor")
	fov         = flag.Float64("fov", 60, "Field of view in degrees")
	fogDensity  = flag.Float64("fog", 0, "Fog density")
	quick       = flag.Bool("quick", false, "Single-worker low-resolution quick render")
	scale       = flag.Int("scale", 4, "Quick preview downscale divisor")
	preview     = flag.Bool("preview", false, "Show a live preview window")
)

var formulaIDs = map[string]uint32{
	"bulb2": marcher.FormulaMandelbulbPower2,
	"bulb8": marcher.FormulaMandelbulbPower8,
	"box":   marcher.FormulaAmazingBox,
}

func main() {
	log.SetFlags(0)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, HelpBanner, Version)
		flag.PrintDefaults()
	}
	flag.Parse()

	fid, ok := formulaIDs[*formula]
	if !ok {
		log.Fatalf(
			utils.DecorateText("Unknown formula %q (supported: bulb2, bulb8, box)", utils.ErrorMessage),
			*formula,
		)
	}
	cam, err := parseVec3(*camera)
	if err != nil {
		log.Fatalf(utils.DecorateText("Invalid -cam value: %v", utils.ErrorMessage), err)
	}
	jc, err := parseVec3(*juliaC)
	if err != nil {
		log.Fatalf(utils.DecorateText("Invalid -julia-c value: %v", utils.ErrorMessage), err)
	}

	if *destination == pipeName && !*preview && term.IsTerminal(int(os.Stdout.Fd())) {
		log.Fatal(utils.DecorateText(
			"Refusing to write image bytes to a terminal; use -out or pipe the output.",
			utils.ErrorMessage,
		))
	}

	session := marcher.NewSession(mandelbulb.Load)
	defer session.Close()

	session.UpdateParams(func(p *marcher.Params) {
		p.Width = *width
		p.Height = *height
		p.Workers = *workers
		p.Iterations = *iterations
		p.Formulas = []marcher.FormulaSlot{{ID: fid, Iterations: 1}}
		p.Julia = *julia
		p.JuliaC = jc
		p.CameraPos = cam
		p.Yaw = *yaw
		p.Pitch = *pitch
		p.Zoom = *zoom
		p.FOV = *fov
		p.FogDensity = *fogDensity
		p.PreviewScale = *scale
	})

	// Cooperative cancellation on Ctrl-C: the in-flight render resolves
	// with whatever rows were marched and the partial image is written.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		session.CancelRender()
	}()

	if *preview {
		// Gio requires the main thread; the render runs alongside it.
		go func() {
			render(session)
			// Leave the window open showing the final image.
		}()
		go func() {
			if err := marcher.NewGUI(session).Run(); err != nil {
				log.Println(utils.DecorateText(err.Error(), utils.ErrorMessage))
				os.Exit(1)
			}
			os.Exit(0)
		}()
		app.Main()
		return
	}

	render(session)
}

// render runs the job (full or quick), streams progress to the spinner
// and writes the output image.
func render(s *marcher.Session) {
	defaultMsg := fmt.Sprintf("%s %s",
		utils.DecorateText("⚡ MARCHER", utils.StatusMessage),
		utils.DecorateText("⇢ rendering (be patient, it may take a while)...", utils.DefaultMessage),
	)
	spinner := utils.NewSpinner(defaultMsg, time.Millisecond*80, true)
	spinner.Start()

	if !*preview {
		go func() {
			for ev := range s.Events() {
				if p, ok := ev.(marcher.ProgressEvent); ok {
					spinner.SetMessage(fmt.Sprintf("%s %s",
						utils.DecorateText("⚡ MARCHER", utils.StatusMessage),
						utils.DecorateText("⇢ rendering... "+utils.FormatProgress(p.Fraction), utils.DefaultMessage),
					))
				}
			}
		}()
	}

	var (
		res *marcher.RenderResult
		err error
	)
	if *quick {
		res, err = s.QuickPreview()
	} else {
		res, err = s.Render()
	}
	if err != nil {
		spinner.Stop()
		log.Fatalf(
			utils.DecorateText("Error rendering the image: %v", utils.ErrorMessage),
			utils.DecorateText(err.Error(), utils.DefaultMessage),
		)
	}

	spinner.StopMsg = fmt.Sprintf("%s %s %s\n",
		utils.DecorateText("⚡ MARCHER", utils.StatusMessage),
		utils.DecorateText("⇢ rendered in:", utils.DefaultMessage),
		utils.DecorateText(utils.FormatTime(res.Elapsed), utils.SuccessMessage),
	)
	spinner.Stop()

	if err := writeResult(res); err != nil {
		log.Fatalf(
			utils.DecorateText("Error saving the image: %v", utils.ErrorMessage),
			utils.DecorateText(err.Error(), utils.DefaultMessage),
		)
	}
}

func writeResult(res *marcher.RenderResult) error {
	img := res.Image()
	if *quick {
		// Blow the preview back up to the requested output size.
		img = res.Upscale(*width, *height)
	}

	if *destination == pipeName {
		if *preview && term.IsTerminal(int(os.Stdout.Fd())) {
			// Window-only run, nothing to write.
			return nil
		}
		return marcher.EncodeImg(os.Stdout, img)
	}
	return marcher.EncodeImg(mustCreate(*destination), img)
}

func mustCreate(path string) *os.File {
	f, err := os.Create(path)
	if err != nil {
		log.Fatalf(
			utils.DecorateText("Unable to create the output file: %v", utils.ErrorMessage),
			utils.DecorateText(err.Error(), utils.DefaultMessage),
		)
	}
	return f
}

// parseVec3 parses a comma separated "x,y,z" triple.
func parseVec3(s string) (marcher.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return marcher.Vec3{}, fmt.Errorf("expected x,y,z but got %q", s)
	}
	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return marcher.Vec3{}, err
		}
		v[i] = f
	}
	return marcher.Vec3{X: v[0], Y: v[1], Z: v[2]}, nil
}
