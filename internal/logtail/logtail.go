/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package logtail streams new lines appended to a running build's log file,
// the way `tail -f` does, so a reader can follow a log without waiting for
// the build to finish. No docfleetctl command uses it; the watch dashboard
// shows job rows only.
package logtail

import (
	"bufio"
	"os"
	"time"
)

// Follow opens path and streams each line written to it from that point
// forward on the returned channel, polling for growth every pollInterval.
// The returned stop func closes the channel and releases the file; it must
// be called exactly once.
func Follow(path string, pollInterval time.Duration) (<-chan string, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	lines := make(chan string)
	done := make(chan struct{})
	var stopped bool

	go func() {
		defer close(lines)
		defer f.Close()

		reader := bufio.NewReader(f)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for {
			for {
				line, err := reader.ReadString('\n')
				if line != "" {
					select {
					case lines <- trimNewline(line):
					case <-done:
						return
					}
				}
				if err != nil {
					break
				}
			}
			select {
			case <-ticker.C:
			case <-done:
				return
			}
		}
	}()

	stop := func() {
		if stopped {
			return
		}
		stopped = true
		close(done)
	}
	return lines, stop, nil
}

func trimNewline(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\n' {
		s = s[:n-1]
	}
	if n := len(s); n > 0 && s[n-1] == '\r' {
		s = s[:n-1]
	}
	return s
}
