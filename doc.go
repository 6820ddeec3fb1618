// Package visionrunner runs vision models behind a small, strict state machine.
//
// A vision task runner wraps a single-input, single-output inference engine
// and exposes it in one of three running modes fixed at construction:
// synchronous images, synchronous video frames, and asynchronous live-stream
// frames whose results are delivered through a callback in submission order.
// The state machine lives in package vision; package stylizer builds the
// face stylizer task on top of it.
//
// Live-stream results are delivered on a task runner from package core:
// by default a SingleThreadTaskRunner owned by the vision runner, or a
// SequencedTaskRunner on a shared GoroutineThreadPool.
//
// # Quick Start
//
//	stylizer, err := stylizer.NewFromOptions(ctx, &stylizer.Options{
//		BaseOptions:    vision.BaseOptions{ModelAssetPath: "face_stylizer.task"},
//		RunningMode:    vision.RunningModeLiveStream,
//		EngineFactory:  reference.NewFactory(reference.Config{}),
//		ResultCallback: func(result, input vision.Image, timestampMs int64) {
//			// Results arrive in timestamp order.
//		},
//	})
//	if err != nil {
//		return err
//	}
//	defer stylizer.Close()
//
//	for ts := int64(0); ts < 300; ts += 30 {
//		if err := stylizer.StylizeAsync(frame, nil, ts); err != nil {
//			return err
//		}
//	}
//
// # Shared pools
//
// Many live-stream runners can share one pool:
//
//	visionrunner.InitGlobalThreadPool(4)
//	defer visionrunner.ShutdownGlobalThreadPool()
//
//	opts.ThreadPool = visionrunner.GetGlobalThreadPool()
//
// Each runner keeps its own FIFO delivery order while workers are shared.
package visionrunner
