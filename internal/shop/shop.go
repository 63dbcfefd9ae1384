// Package shop provides typed access to the back-office resources (cars, billing, expenses,
// customers, works, invites and reports) on top of apiclient.
package shop

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yy184292-glitch/vlp-saas-sub000/internal/apiclient"
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidDateRange = errors.New("date range end must not be before its start")
	ErrInvalidInput     = errors.New("invalid input")
)

const maxPageSize = 200

type Service struct {
	client *apiclient.Client
}

func New(client *apiclient.Client) *Service {
	return &Service{client: client}
}

// Client returns the underlying api client.
func (s *Service) Client() *apiclient.Client {
	return s.client
}

// ListOptions pages a list endpoint. Zero values are omitted so the server defaults apply.
type ListOptions struct {
	Limit  int
	Offset int
}

func (o ListOptions) validate() error {
	if o.Limit < 0 || o.Limit > maxPageSize {
		return fmt.Errorf("%w: limit must be between 0 (server default) and %d", ErrInvalidInput, maxPageSize)
	}
	if o.Offset < 0 {
		return fmt.Errorf("%w: offset must not be negative", ErrInvalidInput)
	}
	return nil
}

func (o ListOptions) apply(q url.Values) {
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		q.Set("offset", strconv.Itoa(o.Offset))
	}
}

// Date is a calendar date without a time zone, encoded as YYYY-MM-DD.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the date t falls on in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w %q: expected YYYY-MM-DD", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) asTime() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) Before(other Date) bool {
	return d.asTime().Before(other.asTime())
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.asTime().AddDate(0, 0, n))
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.asTime().Format(dateLayout)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateRange is an inclusive range of dates.
type DateRange struct {
	From Date
	To   Date
}

// Validate rejects missing bounds and a To before From, matching the server's 400.
func (r DateRange) Validate() error {
	if r.From.IsZero() || r.To.IsZero() {
		return fmt.Errorf("%w: both start and end dates are required", ErrInvalidDateRange)
	}
	if r.To.Before(r.From) {
		return fmt.Errorf("%w: %s is before %s", ErrInvalidDateRange, r.To, r.From)
	}
	return nil
}

// LastDays returns the range of n days ending on today.
func LastDays(today Date, n int) DateRange {
	if n < 1 {
		n = 1
	}
	return DateRange{From: today.AddDays(-(n - 1)), To: today}
}

func setStoreID(q url.Values, storeID *uuid.UUID) {
	if storeID != nil && *storeID != uuid.Nil {
		q.Set("store_id", storeID.String())
	}
}

func resourcePath(collection, id string) string {
	return collection + "/" + url.PathEscape(id)
}
