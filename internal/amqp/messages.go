package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"gastos/internal/core"
)

// Event types double as routing keys on the topic exchange.
const (
	EventExpensesImported = "expenses.imported"
	EventExpenseUpdated   = "expense.updated"
	EventExpenseDeleted   = "expense.deleted"
)

// ExpenseEvent announces a change to stored expenses. Imports and updates
// carry the full rows so consumers never read the database; deletes only
// carry the id.
type ExpenseEvent struct {
	Type      string         `json:"type"`
	Expenses  []core.Expense `json:"expenses,omitempty"`
	ID        int64          `json:"id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func NewImportedEvent(expenses []core.Expense) *ExpenseEvent {
	return &ExpenseEvent{Type: EventExpensesImported, Expenses: expenses, Timestamp: time.Now().UTC()}
}

func NewUpdatedEvent(e core.Expense) *ExpenseEvent {
	return &ExpenseEvent{Type: EventExpenseUpdated, Expenses: []core.Expense{e}, ID: e.ID, Timestamp: time.Now().UTC()}
}

func NewDeletedEvent(id int64) *ExpenseEvent {
	return &ExpenseEvent{Type: EventExpenseDeleted, ID: id, Timestamp: time.Now().UTC()}
}

// ToJSON converts the event to JSON bytes
func (e *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ExpenseEventFromJSON decodes and checks an event.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var evt ExpenseEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, err
	}
	switch evt.Type {
	case EventExpensesImported, EventExpenseUpdated:
		if len(evt.Expenses) == 0 {
			return nil, fmt.Errorf("%s event without expenses", evt.Type)
		}
	case EventExpenseDeleted:
		if evt.ID <= 0 {
			return nil, fmt.Errorf("%s event without id", evt.Type)
		}
	default:
		return nil, fmt.Errorf("unknown event type %q", evt.Type)
	}
	return &evt, nil
}
