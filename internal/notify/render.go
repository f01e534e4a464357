package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"genmart/internal/queue"
	"genmart/internal/service"

	"github.com/shopspring/decimal"
)

var mailTemplate = template.Must(template.New("mail").Parse(`<!doctype html>
<html><body style="font-family:sans-serif">
<p>Assalam-o-Alaikum,</p>
{{range .Lines}}<p>{{.}}</p>
{{end}}<p>Reference: <strong>{{.Reference}}</strong></p>
<p>{{.Store}}</p>
</body></html>`))

type mailView struct {
	Lines     []string
	Reference string
	Store     string
}

var statusWords = map[string]string{
	"CONFIRMED":        "has been confirmed",
	"PROCESSING":       "is being prepared",
	"SHIPPED":          "has been shipped",
	"OUT_FOR_DELIVERY": "is out for delivery",
	"DELIVERED":        "has been delivered",
	"CANCELLED":        "has been cancelled",
	"REFUNDED":         "has been refunded",
	"REVIEWING":        "is being reviewed by our technicians",
	"QUOTED":           "has a quote ready",
	"APPROVED":         "has been approved",
	"IN_PROGRESS":      "is in progress",
	"COMPLETED":        "has been completed",
}

func rupees(raw string) string {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return raw
	}
	return service.FormatRupees(d)
}

func humanStatus(status string) string {
	if w, ok := statusWords[status]; ok {
		return w
	}
	return "is now " + strings.ToLower(strings.ReplaceAll(status, "_", " "))
}

// Render turns ev into an e-mail for the customer. ok is false for events
// that do not warrant one.
func Render(ev queue.Event, store string) (msg Message, ok bool, err error) {
	if ev.Email == "" {
		return Message{}, false, nil
	}
	var subject string
	var lines []string
	switch ev.Type {
	case queue.EventOrderCreated:
		subject = fmt.Sprintf("Order %s received", ev.Reference)
		lines = append(lines, "Thank you for your order. We will confirm it shortly.")
		if total := ev.Payload["total"]; total != "" {
			lines = append(lines, "Order total: "+rupees(total))
		}
		if ev.Payload["payment_method"] == "BANK_TRANSFER" {
			lines = append(lines, "Please quote the reference below with your bank transfer.")
		}
	case queue.EventOrderCancelled:
		subject = fmt.Sprintf("Order %s cancelled", ev.Reference)
		lines = append(lines, "Your order has been cancelled as requested.")
		if ev.Payload["payment_status"] == "REFUNDED" {
			lines = append(lines, "Your payment will be refunded to the original method.")
		}
	case queue.EventOrderStatusChanged:
		subject = fmt.Sprintf("Order %s update", ev.Reference)
		lines = append(lines, "Your order "+humanStatus(ev.Status)+".")
		if note := ev.Payload["note"]; note != "" {
			lines = append(lines, "Note from our team: "+note)
		}
	case queue.EventOrderPaymentUpdated:
		subject = fmt.Sprintf("Payment for order %s", ev.Reference)
		lines = append(lines, "Payment status: "+strings.ToLower(ev.Payload["payment_status"])+".")
	case queue.EventServiceCreated:
		subject = fmt.Sprintf("Service request %s received", ev.Reference)
		lines = append(lines, "We have received your service request and will contact you to schedule a visit.")
	case queue.EventServiceStatusChanged:
		subject = fmt.Sprintf("Service request %s update", ev.Reference)
		lines = append(lines, "Your service request "+humanStatus(ev.Status)+".")
		if amount := ev.Payload["quoted_amount"]; amount != "" && ev.Status == "QUOTED" {
			lines = append(lines, "Quoted amount: "+rupees(amount))
		}
	case queue.EventListingCreated:
		subject = "Listing submitted for review"
		lines = append(lines, fmt.Sprintf("Your listing %q is waiting for moderation.", ev.Reference))
	case queue.EventListingModerated:
		subject = "Listing update"
		switch ev.Status {
		case "APPROVED":
			lines = append(lines, fmt.Sprintf("Your listing %q is now live for 60 days.", ev.Reference))
		case "REJECTED":
			lines = append(lines, fmt.Sprintf("Your listing %q was not approved: %s", ev.Reference, ev.Payload["reason"]))
		case "SOLD":
			lines = append(lines, fmt.Sprintf("Your listing %q has been marked sold.", ev.Reference))
		default:
			lines = append(lines, fmt.Sprintf("Your listing %q has expired.", ev.Reference))
		}
	default:
		return Message{}, false, nil
	}

	var buf bytes.Buffer
	if err := mailTemplate.Execute(&buf, mailView{Lines: lines, Reference: ev.Reference, Store: store}); err != nil {
		return Message{}, false, fmt.Errorf("render %s: %w", ev.Type, err)
	}
	return Message{To: ev.Email, Subject: fmt.Sprintf("%s | %s", subject, store), HTML: buf.String()}, true, nil
}
