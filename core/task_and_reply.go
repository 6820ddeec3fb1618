package core

import "context"

// TaskWithResult is a task that produces a value.
type TaskWithResult[T any] func(ctx context.Context) (T, error)

// ReplyWithResult receives the value produced by a TaskWithResult.
type ReplyWithResult[T any] func(ctx context.Context, result T, err error)

// PostTaskAndReply runs task on targetRunner and, once it returns, posts
// reply to replyRunner. If task panics the reply is not posted and the panic
// reaches targetRunner's PanicHandler. A nil replyRunner posts only the task.
//
// It reports whether targetRunner accepted the task.
func PostTaskAndReply(targetRunner TaskRunner, task Task, reply Task, replyRunner TaskRunner) bool {
	if replyRunner == nil {
		return targetRunner.PostTask(task)
	}
	return targetRunner.PostTask(func(ctx context.Context) {
		task(ctx)
		replyRunner.PostTask(reply)
	})
}

// PostTaskAndReplyWithResult runs task on targetRunner and hands its result
// to reply on replyRunner. The task always completes before the reply starts,
// so the reply sees the values the task wrote.
//
// Example:
//
//	core.PostTaskAndReplyWithResult(
//	    poolRunner,
//	    func(ctx context.Context) (vision.Image, error) {
//	        return stylizer.Stylize(ctx, frame, nil)
//	    },
//	    func(ctx context.Context, out vision.Image, err error) {
//	        show(out)
//	    },
//	    uiRunner,
//	)
func PostTaskAndReplyWithResult[T any](
	targetRunner TaskRunner,
	task TaskWithResult[T],
	reply ReplyWithResult[T],
	replyRunner TaskRunner,
) bool {
	var result T
	var err error

	return PostTaskAndReply(
		targetRunner,
		func(ctx context.Context) { result, err = task(ctx) },
		func(ctx context.Context) { reply(ctx, result, err) },
		replyRunner,
	)
}
