package audio

// Drain reads from ch until the channel is closed, discarding all values.
// Use it when a stream is abandoned so its producer goroutine can finish.
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
