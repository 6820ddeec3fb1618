package visionrunner_test

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	visionrunner "github.com/Swind/go-vision-runner"
	"github.com/Swind/go-vision-runner/core"
	"github.com/Swind/go-vision-runner/engine/reference"
	"github.com/Swind/go-vision-runner/stylizer"
	"github.com/Swind/go-vision-runner/vision"
)

func portrait() *vision.Frame {
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(120, 20, 200, 100), image.NewUniform(color.RGBA{R: 90, G: 60, B: 40, A: 255}), image.Point{}, draw.Src)
	return vision.NewFrame(img)
}

// ExampleCreateTaskRunner demonstrates the basic usage with only one import.
func ExampleCreateTaskRunner() {
	visionrunner.InitGlobalThreadPool(2)
	defer visionrunner.ShutdownGlobalThreadPool()

	runner := visionrunner.CreateTaskRunner("example")
	done := make(chan struct{})

	runner.PostTask(func(ctx context.Context) {
		fmt.Println("Task 1")
	})
	runner.PostTask(func(ctx context.Context) {
		fmt.Println("Task 2")
	})
	runner.PostTask(func(ctx context.Context) {
		fmt.Println("Task 3")
		close(done)
	})
	<-done

	// Output:
	// Task 1
	// Task 2
	// Task 3
}

// Example_imageMode shows synchronous stylization in image mode.
func Example_imageMode() {
	ctx := context.Background()
	s, err := stylizer.NewFromOptions(ctx, &stylizer.Options{
		BaseOptions:   vision.BaseOptions{ModelAssetBuffer: []byte("model")},
		RunningMode:   visionrunner.RunningModeImage,
		EngineFactory: reference.NewFactory(reference.Config{OutputSize: 128}),
		Logger:        core.NewNoOpLogger(),
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	defer s.Close()

	out, _ := s.Stylize(ctx, portrait(), nil)
	fmt.Printf("stylized %dx%d\n", out.Width(), out.Height())

	out, _ = s.Stylize(ctx, portrait(), &visionrunner.RegionOfInterest{Left: 0, Top: 0.6, Right: 0.3, Bottom: 1})
	fmt.Println("face found:", out != nil)

	// Output:
	// stylized 128x128
	// face found: false
}

// Example_liveStream shows results arriving in timestamp order.
func Example_liveStream() {
	var (
		mu      sync.Mutex
		results []string
	)
	s, err := stylizer.NewFromOptions(context.Background(), &stylizer.Options{
		BaseOptions: vision.BaseOptions{ModelAssetBuffer: []byte("model")},
		RunningMode: visionrunner.RunningModeLiveStream,
		ResultCallback: func(result, _ vision.Image, timestampMs int64) {
			mu.Lock()
			results = append(results, fmt.Sprintf("%d: %dx%d", timestampMs, result.Width(), result.Height()))
			mu.Unlock()
		},
		EngineFactory: reference.NewFactory(reference.Config{OutputSize: 32}),
		Logger:        core.NewNoOpLogger(),
	})
	if err != nil {
		fmt.Println(err)
		return
	}

	frame := portrait()
	for ts := int64(0); ts < 90; ts += 30 {
		if err := s.StylizeAsync(frame, nil, ts); err != nil {
			fmt.Println(err)
		}
	}
	rejected := s.StylizeAsync(frame, nil, 30)

	// Close waits for every accepted frame.
	_ = s.Close()

	for _, line := range results {
		fmt.Println(line)
	}
	fmt.Println(rejected)

	// Output:
	// 0: 32x32
	// 30: 32x32
	// 60: 32x32
	// face_stylizer: input timestamp must be monotonically increasing; got 30, last accepted 60
}
