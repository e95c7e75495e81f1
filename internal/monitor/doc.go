// Package monitor samples container resource usage and drives the render loop.
//
// # Key Components
//
//	Sampler  - Fetches one stats snapshot per container per tick, in parallel
//	Pool     - Fixed worker goroutines owned by one sampler generation
//	Store    - Per-container series sharing a single x-axis of tick timestamps
//	Engine   - The discover, sample, render, reset loop
//
// # Ticks
//
// A tick records one timestamp, fans out a stats fetch for every tracked
// container and waits for all of them. If any fetch fails, times out, or
// returns a malformed snapshot, the other fetches are cancelled and nothing
// from the tick reaches the Store. The Store therefore always holds exactly
// as many samples per container as it holds timestamps.
//
// # Engine Loop
//
// The engine cycles through these states:
//
//  1. DISCOVERING: ask the registry for a non-empty container set. A changed
//     set closes the sampler, rebuilds the Store and opens a new generation.
//  2. SAMPLING: run the configured number of ticks.
//  3. RENDERING: hand the series to the renderer and deliver the image.
//  4. RESET: clear the Store, then rediscover or keep sampling.
//
// A recoverable tick failure skips RENDERING, clears the Store (REBUILD) and
// returns to DISCOVERING, so a chart never contains a gap. Errors that are not
// recoverable, such as an unreachable daemon, stop the loop.
package monitor
