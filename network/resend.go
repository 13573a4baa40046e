package network

import "github.com/lixenwraith/rollback/input"

// maxResend bounds the inputs carried in one frame after drops
const maxResend = 64

// resendQueue holds local inputs whose frame some peer's send queue refused
// They ride along with the next input frame until one reaches every peer
type resendQueue struct {
	msgs []input.Message
}

func (q *resendQueue) pending() []input.Message {
	return q.msgs
}

// settle updates the queue after msg was broadcast with the given drop count
// and returns how many inputs fell off the front of a full queue
func (q *resendQueue) settle(msg input.Message, dropped int) int {
	if dropped == 0 {
		q.msgs = q.msgs[:0]
		return 0
	}
	q.msgs = append(q.msgs, msg)
	lost := max(0, len(q.msgs)-maxResend)
	if lost > 0 {
		q.msgs = append(q.msgs[:0], q.msgs[lost:]...)
	}
	return lost
}
