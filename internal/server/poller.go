package server

import (
	"time"

	"golang.org/x/sys/unix"
)

// readyMask flags a descriptor worth reading: data pending, peer hung up,
// or the descriptor is in an error state. Hangups and errors are surfaced
// through the subsequent read, which fails and triggers teardown.
const readyMask = unix.POLLIN | unix.POLLHUP | unix.POLLERR | unix.POLLNVAL

// poller wraps one poll(2) set. The backing slices are reused across ticks;
// index 0 is always the listener.
type poller struct {
	fds []unix.PollFd
	ids []string // ids[i] maps fds[i+1] back to its connection
}

// wait blocks until something is readable or the timeout lapses. It reports
// whether the listener has a pending accept and which connections have data.
// An interrupted or timed-out poll is an empty result, not an error.
func (p *poller) wait(listenerFD int, conns map[string]*conn, timeout time.Duration) (bool, []string, error) {
	p.fds = p.fds[:0]
	p.ids = p.ids[:0]

	p.fds = append(p.fds, unix.PollFd{Fd: int32(listenerFD), Events: unix.POLLIN})
	for id, c := range conns {
		p.fds = append(p.fds, unix.PollFd{Fd: int32(c.fd), Events: unix.POLLIN})
		p.ids = append(p.ids, id)
	}

	n, err := unix.Poll(p.fds, int(timeout.Milliseconds()))
	if err != nil {
		if err == unix.EINTR {
			return false, nil, nil
		}
		return false, nil, err
	}
	if n == 0 {
		return false, nil, nil
	}

	listenerReady := p.fds[0].Revents&readyMask != 0

	var ready []string
	for i, pfd := range p.fds[1:] {
		if pfd.Revents&readyMask != 0 {
			ready = append(ready, p.ids[i])
		}
	}
	return listenerReady, ready, nil
}
