// Command visiontest runs fiducial, solder pad and joint analysis on a board
// image and prints the results.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"os"

	"solderbot/internal/scan"
	"solderbot/internal/vision"
)

func main() {
	imagePath := flag.String("image", "", "Path to board image (TIFF, PNG, or JPEG)")
	mode := flag.String("mode", "board", "Analysis: board (fiducials and pads) or joint")
	scale := flag.Float64("mm-per-pixel", 0, "Board scale; defaults to the image DPI or the pipeline default")
	outPath := flag.String("out", "", "Write an annotated PNG to this path")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: visiontest -image <path> [-mode board|joint] [-mm-per-pixel 0.07] [-out annotated.png]")
		os.Exit(1)
	}

	sc, err := scan.Load(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load image: %v\n", err)
		os.Exit(1)
	}
	bounds := sc.Image.Bounds()
	fmt.Printf("Loaded image: %dx%d pixels\n", bounds.Dx(), bounds.Dy())

	params := vision.DefaultParams()
	switch {
	case *scale > 0:
		params = params.WithScale(*scale)
	case sc.MMPerPixel() > 0:
		params = params.WithScale(sc.MMPerPixel())
		fmt.Printf("DPI: %.0f\n", sc.DPI)
	}
	fmt.Printf("Scale: %.4f mm/px\n", params.MMPerPixel)

	var annotated image.Image
	switch *mode {
	case "board":
		annotated = analyzeBoard(sc.Image, params)
	case "joint":
		annotated = analyzeJoint(sc.Image, params)
	default:
		fmt.Fprintf(os.Stderr, "Unknown mode %q\n", *mode)
		os.Exit(1)
	}

	if *outPath != "" && annotated != nil {
		if err := writePNG(*outPath, annotated); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", *outPath, err)
			os.Exit(1)
		}
		fmt.Printf("\nWrote %s\n", *outPath)
	}
}

func analyzeBoard(img image.Image, params vision.Params) image.Image {
	fmt.Printf("\nDetection parameters:\n")
	fmt.Printf("  Fiducial area: %.0f - %.0f px\n", params.FiducialMinArea, params.FiducialMaxArea)
	fmt.Printf("  Hough: dp=%.1f minDist=%.0f param1=%.0f param2=%.0f radius=%d-%d\n",
		params.HoughDP, params.HoughMinDist, params.HoughParam1, params.HoughParam2, params.MinRadius, params.MaxRadius)

	fiducials, err := vision.DetectFiducials(img, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fiducial detection failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetected %d fiducials:\n", len(fiducials))
	fmt.Printf("%-4s %10s %10s %10s %10s\n", "#", "X px", "Y px", "X mm", "Y mm")
	for i, f := range fiducials {
		fmt.Printf("%-4d %10.1f %10.1f %10.2f %10.2f\n",
			i, f.X, f.Y, f.X*params.MMPerPixel, f.Y*params.MMPerPixel)
	}

	pads, err := vision.DetectSolderCandidates(img, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Pad detection failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetected %d solder candidates:\n", len(pads))
	fmt.Printf("%-4s %10s %10s %8s\n", "#", "X mm", "Y mm", "R px")
	for i, c := range pads {
		fmt.Printf("%-4d %10.2f %10.2f %8.1f\n",
			i, c.Center.X*params.MMPerPixel, c.Center.Y*params.MMPerPixel, c.Radius)
	}

	if len(fiducials) < 2 {
		fmt.Println("\nWarning: fewer than 2 fiducials, the board cannot be registered")
	}

	out, err := vision.Annotate(img, fiducials, pads)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Annotation failed: %v\n", err)
		return nil
	}
	return out
}

func analyzeJoint(img image.Image, params vision.Params) image.Image {
	a, err := vision.AnalyzeJoint(img, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Joint analysis failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nJoint analysis:\n")
	fmt.Printf("  Area:        %.0f px\n", a.Area)
	fmt.Printf("  Diameter:    %.2f (%.1f px)\n", a.Diameter, a.DiameterPx)
	fmt.Printf("  Circularity: %.2f\n", a.Circularity)
	fmt.Printf("  Voids:       %.0f%%\n", a.VoidFraction*100)
	fmt.Printf("  Quality:     %.2f\n", a.Quality)
	fmt.Printf("  Defect:      %s\n", a.Defect)
	fmt.Printf("  Acceptable:  %v\n", a.Acceptable)

	out, err := vision.AnnotateJoint(img, a)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Annotation failed: %v\n", err)
		return nil
	}
	return out
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
