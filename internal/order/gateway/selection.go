package gateway

import "nathanbeddoewebdev/vpsorder/internal/order/domain"

// Selection is the view-local choice of gateway option for one
// transaction. It annotates the transaction's options without copying or
// changing them.
type Selection struct {
	options  []domain.PaymentGatewayOption
	selected int
}

// NewSelection starts a selection over options at the selector's default.
func NewSelection(s Selector, options []domain.PaymentGatewayOption) *Selection {
	sel := &Selection{options: options, selected: -1}
	if def, ok := s.SelectDefault(options); ok {
		sel.selected = sel.indexOf(def.Key())
	}
	return sel
}

func (s *Selection) indexOf(key string) int {
	for i, o := range s.options {
		if o.Key() == key {
			return i
		}
	}
	return -1
}

// Options returns the options in server order.
func (s *Selection) Options() []domain.PaymentGatewayOption {
	return s.options
}

// Current returns the selected option. ok is false when there are no options.
func (s *Selection) Current() (domain.PaymentGatewayOption, bool) {
	if s == nil || s.selected < 0 {
		return domain.PaymentGatewayOption{}, false
	}
	return s.options[s.selected], true
}

// Index returns the position of the selected option, or -1.
func (s *Selection) Index() int {
	if s == nil {
		return -1
	}
	return s.selected
}

// Choose selects the option with the given key.
func (s *Selection) Choose(key string) (domain.PaymentGatewayOption, error) {
	opt, err := Select(s.options, key)
	if err != nil {
		return domain.PaymentGatewayOption{}, err
	}
	s.selected = s.indexOf(key)
	return opt, nil
}

// Next cycles to the following option and returns it.
func (s *Selection) Next() (domain.PaymentGatewayOption, bool) {
	if len(s.options) == 0 {
		return domain.PaymentGatewayOption{}, false
	}
	s.selected = (s.selected + 1) % len(s.options)
	return s.options[s.selected], true
}

// Replace swaps in a re-fetched option list. The previous choice is kept
// when an option with the same key still exists; otherwise the default is
// chosen again. Amounts are always taken from the new list.
func (s *Selection) Replace(sel Selector, options []domain.PaymentGatewayOption) {
	var prevKey string
	if cur, ok := s.Current(); ok {
		prevKey = cur.Key()
	}
	s.options = options
	s.selected = -1
	if prevKey != "" {
		s.selected = s.indexOf(prevKey)
	}
	if s.selected < 0 {
		if def, ok := sel.SelectDefault(options); ok {
			s.selected = s.indexOf(def.Key())
		}
	}
}
