/*
Package marcher renders ray-marched 3D fractals with a pool of persistent
worker goroutines that cooperatively fill a shared pixel buffer in two
phases: a parallel march phase writing per-pixel G-buffer records, and a
single-worker paint phase shading them into RGBA bytes. The pool exposes
polled progress, cooperative mid-flight cancellation and a single-worker
quick-preview path for interactive navigation.

The package provides a command line interface supporting various flags for
the camera, formula and lighting setup. To check the supported commands type:

	$ marcher --help

In case you wish to integrate the API in a self constructed environment
here is a simple example:

	package main

	import (
		"fmt"

		"github.com/esimov/marcher"
		"github.com/esimov/marcher/mandelbulb"
	)

	func main() {
		s := marcher.NewSession(mandelbulb.Load)
		defer s.Close()

		res, err := s.Render()
		if err != nil {
			fmt.Printf("Error rendering image: %s", err.Error())
			return
		}
		res.Save("fractal.png")
	}
*/
package marcher
