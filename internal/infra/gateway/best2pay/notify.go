package best2pay

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"telegram-vpn-subscription/internal/domain"
)

// Notification is a parsed Best2Pay operation notification. Field order in
// the document is significant: the signature covers every child element value
// in document order, excluding the signature element itself.
type Notification struct {
	OrderID      string
	OrderState   string
	Reference    string
	OperationID  string
	Type         string
	State        string
	Amount       string // minor units, as sent on the wire
	CurrencyCode string // ISO numeric, e.g. "643"
	Signature    string

	// orderedValues holds every non-signature element value in document
	// order; this is the exact signature input per provider documentation.
	orderedValues []string
}

// OrderedValues returns the signature input values in document order.
func (n *Notification) OrderedValues() []string { return n.orderedValues }

// parseNotification walks the XML tokens of the root element's direct
// children, preserving document order. encoding/xml struct decoding would
// lose that order, which the signature scheme depends on.
func parseNotification(body []byte) (*Notification, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))

	var root xml.StartElement
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			root = se
			break
		}
	}

	n := &Notification{}
	depth := 0
	var name string
	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 {
				name = t.Name.Local
				text.Reset()
			}
		case xml.CharData:
			if depth == 1 {
				text.Write(t)
			}
		case xml.EndElement:
			if depth == 0 {
				// closing root
				if t.Name.Local != root.Name.Local {
					return nil, domain.ErrMalformedPayload
				}
				continue
			}
			depth--
			if depth == 0 {
				n.setField(name, text.String())
			}
		}
	}
	return n, nil
}

func (n *Notification) setField(name, value string) {
	if name != "signature" {
		n.orderedValues = append(n.orderedValues, value)
	}
	switch name {
	case "order_id":
		n.OrderID = value
	case "order_state":
		n.OrderState = value
	case "reference":
		n.Reference = value
	case "id":
		n.OperationID = value
	case "type":
		n.Type = value
	case "state":
		n.State = value
	case "amount":
		n.Amount = value
	case "currency":
		n.CurrencyCode = value
	case "signature":
		n.Signature = value
	}
}

// complete reports whether the fields required to process a notification are
// all present.
func (n *Notification) complete() bool {
	return n.OrderID != "" && n.Reference != "" && n.OperationID != "" && n.Signature != ""
}
