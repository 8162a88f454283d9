// Package eventloop implements the marshaling channel between dispatch tasks
// and the caller's single-threaded context.
//
// A Loop owns exactly one consumer goroutine. Any number of producers Post
// closures to it; the consumer runs them one at a time in the order they were
// accepted, so everything a single producer posts is observed in FIFO order.
// Ordering across producers is unspecified.
//
// Producers never wait on consumer progress except to back off while the
// bounded queue is full. Once a Loop is closed (or its consumer has returned)
// Post drops the closure and reports false instead of blocking, so worker
// goroutines can never stall shutdown.
//
//	loop := eventloop.New(func(o *eventloop.Options) { o.QueueSize = 1024 })
//	loop.Start()
//	defer loop.Close()
//
//	loop.Post(func() { fmt.Println("runs on the loop goroutine") })
package eventloop
