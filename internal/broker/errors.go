package broker

import "fmt"

type trackerError struct {
	orderID string
	reason  string
}

func (e *trackerError) Error() string {
	return fmt.Sprintf("broker: order %s: %s", e.orderID, e.reason)
}

func errOrderNotFound(orderID string) error { return &trackerError{orderID, "not registered"} }
func errTerminalOrder(orderID string) error { return &trackerError{orderID, "already terminal"} }
func errOverfill(orderID string) error      { return &trackerError{orderID, "fill exceeds order quantity"} }
