package market

import "time"

// Status is the lifecycle state of a market run.
type Status string

const (
	StatusPlanning  Status = "planning"
	StatusShopping  Status = "shopping"
	StatusCompleted Status = "completed"
)

// Active reports whether a run in this status can still be shopped.
func (s Status) Active() bool {
	return s == StatusPlanning || s == StatusShopping
}

// DefaultCategory is assigned to items added without a category.
const DefaultCategory = "other"

// Run is a single shopping trip and its list of items.
type Run struct {
	// ID is a ULID that uniquely identifies this run
	ID string `json:"id"`

	Title string `json:"title"`

	// Date is the locale-formatted creation date (M/D/YYYY)
	Date string `json:"date"`

	// Items in insertion order
	Items []Item `json:"items"`

	Status Status `json:"status"`

	// Budget is nil when no budget has been set
	Budget *float64 `json:"budget,omitempty"`

	// ScheduledDate is an optional RFC 3339 timestamp for a planned trip
	ScheduledDate *string `json:"scheduled_date,omitempty"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// Item is one entry on a run's list.
type Item struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	EstimatedPrice *float64 `json:"estimated_price,omitempty"`
	ActualPrice    *float64 `json:"actual_price,omitempty"`
	Completed      bool     `json:"completed"`
	Category       string   `json:"category"`
	Note           string   `json:"note,omitempty"`
	CreatedAt      int64    `json:"created_at"`
	UpdatedAt      int64    `json:"updated_at"`
}

// NewRun carries the fields needed to create a run.
type NewRun struct {
	Title         string
	Budget        *float64
	ScheduledDate *string
}

// NewItem carries the fields needed to add an item to the active run.
type NewItem struct {
	Name           string
	Category       string
	Completed      bool
	EstimatedPrice *float64
}

// ItemPatch is a partial item update; nil fields are left unchanged.
type ItemPatch struct {
	Name           *string
	EstimatedPrice *float64
	ActualPrice    *float64
	Completed      *bool
	Category       *string
	Note           *string
}

// RunPatch is a partial run update; nil fields are left unchanged.
type RunPatch struct {
	Title         *string
	Budget        *float64
	Status        *Status
	ScheduledDate *string
}

// FormatDate formats t the way run dates and default titles are shown (M/D/YYYY).
func FormatDate(t time.Time) string {
	return t.Format("1/2/2006")
}

// DefaultTitle returns the title given to runs created without one.
func DefaultTitle(now time.Time) string {
	return "Market Run - " + FormatDate(now)
}

// Incomplete returns the items not yet marked complete, in list order.
func (r *Run) Incomplete() []Item {
	var out []Item
	for _, it := range r.Items {
		if !it.Completed {
			out = append(out, it)
		}
	}
	return out
}

// ItemByID returns the item with the given ID.
func (r *Run) ItemByID(id string) (*Item, bool) {
	for i := range r.Items {
		if r.Items[i].ID == id {
			return &r.Items[i], true
		}
	}
	return nil, false
}

// Apply copies the set fields of p onto it.
func (p ItemPatch) Apply(it *Item) {
	if p.Name != nil {
		it.Name = *p.Name
	}
	if p.EstimatedPrice != nil {
		v := *p.EstimatedPrice
		it.EstimatedPrice = &v
	}
	if p.ActualPrice != nil {
		v := *p.ActualPrice
		it.ActualPrice = &v
	}
	if p.Completed != nil {
		it.Completed = *p.Completed
	}
	if p.Category != nil {
		it.Category = *p.Category
	}
	if p.Note != nil {
		it.Note = *p.Note
	}
}

// Apply copies the set fields of p onto r.
func (p RunPatch) Apply(r *Run) {
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Budget != nil {
		v := *p.Budget
		r.Budget = &v
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.ScheduledDate != nil {
		v := *p.ScheduledDate
		r.ScheduledDate = &v
	}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPlanning, StatusShopping, StatusCompleted:
		return true
	}
	return false
}
