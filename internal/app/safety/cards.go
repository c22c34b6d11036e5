package safety

import (
	"strings"

	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/message"
)

// cardTrigger binds a fixed phrase to the card option it produces. The
// target path is a template: {userId} is filled with the sender id, {token}
// stays as a placeholder for the client to substitute.
type cardTrigger struct {
	phrase string
	label  string
	target string
	verb   string
}

// cardTriggers is the fixed trigger table, scanned in order.
var cardTriggers = []cardTrigger{
	{phrase: "查询订单", label: "查询订单", target: "/order/list?userId={userId}&token={token}", verb: "GET"},
	{phrase: "申请退款", label: "申请退款", target: "/order/refund?userId={userId}&token={token}", verb: "POST"},
	{phrase: "查询物流", label: "查询物流", target: "/order/shipping?userId={userId}&token={token}", verb: "GET"},
}

// DetectCard scans body for trigger phrases and returns the resulting
// service card, or nil when no trigger matches.
func DetectCard(body, senderID string) *message.ServiceCard {
	var options []message.CardOption

	for _, trigger := range cardTriggers {
		if !strings.Contains(body, trigger.phrase) {
			continue
		}
		options = append(options, message.CardOption{
			Label:  trigger.label,
			Target: strings.ReplaceAll(trigger.target, "{userId}", senderID),
			Verb:   trigger.verb,
		})
	}

	if len(options) == 0 {
		return nil
	}
	return &message.ServiceCard{Options: options}
}
