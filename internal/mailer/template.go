package mailer

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
)

var confirmation = template.Must(template.New("order_placed").Funcs(template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
}).Parse(`Hi,

your order {{.OrderID}} has been placed.

{{range .Items}}- {{.Title}} x {{.Qty}} @ {{money .UnitPrice}}
{{end}}
Total: {{money .Total}}
`))

// Render builds the confirmation message for a placed order.
func Render(from string, p orders.OrderPlacedPayload) (Message, error) {
	var body bytes.Buffer
	if err := confirmation.Execute(&body, p); err != nil {
		return Message{}, fmt.Errorf("render confirmation: %w", err)
	}
	return Message{
		From:    from,
		To:      p.UserID,
		Subject: fmt.Sprintf("Order %s confirmed", p.OrderID),
		Body:    body.String(),
	}, nil
}
