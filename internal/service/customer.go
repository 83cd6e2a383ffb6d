package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/deliverydesk/deliverydesk/internal/events"
	"github.com/deliverydesk/deliverydesk/internal/importer"
	"github.com/deliverydesk/deliverydesk/internal/metrics"
	"github.com/deliverydesk/deliverydesk/internal/model"
	"github.com/deliverydesk/deliverydesk/internal/repository"
)

const (
	maxNameLength        = 100
	maxAddressLength     = 200
	maxAccountTypeLength = 50
	maxTerritoryLength   = 50
)

// CustomerService handles customer business logic.
type CustomerService struct {
	store   CustomerStore
	reports ReportInvalidator
	events  Emitter
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewCustomerService creates a new CustomerService. reports may be nil.
func NewCustomerService(store CustomerStore, reports ReportInvalidator, emitter Emitter, logger *slog.Logger, recorder metrics.Recorder) *CustomerService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if emitter == nil {
		emitter = nopEmitter{}
	}
	return &CustomerService{
		store:   store,
		reports: reports,
		events:  emitter,
		logger:  logger.With("component", "service.customer"),
		metrics: recorder,
	}
}

// CustomerInput holds the client-editable customer fields.
type CustomerInput struct {
	Name        string
	Address     string
	DeliveryDay string
	AccountType string
	Territory   string
}

// CustomerQuery filters List.
type CustomerQuery struct {
	Territory   string
	DeliveryDay string
	Query       string
}

// List returns customers ordered by name.
func (s *CustomerService) List(ctx context.Context, q CustomerQuery) ([]model.Customer, error) {
	filter := repository.CustomerFilter{Query: q.Query}
	if t := strings.TrimSpace(q.Territory); t != "" {
		filter.Territories = []string{t}
	}
	if q.DeliveryDay != "" {
		day, ok := model.NormalizeDeliveryDay(q.DeliveryDay)
		if !ok {
			return nil, invalid("delivery_day", "must be a day of the week")
		}
		filter.DeliveryDay = day
	}

	customers, err := s.store.ListCustomers(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	return customers, nil
}

// Get returns a single customer.
func (s *CustomerService) Get(ctx context.Context, id int64) (*model.Customer, error) {
	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return c, nil
}

// Create validates and inserts a customer with a zero balance.
func (s *CustomerService) Create(ctx context.Context, in CustomerInput) (*model.Customer, error) {
	c, err := in.toCustomer()
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateCustomer(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	s.metrics.IncCustomerWrite(events.ActionCreated)
	s.events.Emit(ctx, events.EntityCustomer, idString(c.ID), events.ActionCreated, c)
	return c, nil
}

// Update replaces the editable fields. The balance is left untouched.
func (s *CustomerService) Update(ctx context.Context, id int64, in CustomerInput) (*model.Customer, error) {
	c, err := in.toCustomer()
	if err != nil {
		return nil, err
	}
	c.ID = id

	if err := s.store.UpdateCustomer(ctx, c); err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to update customer: %w", err)
	}

	// Territory reports group by the customer's current territory.
	invalidateReports(ctx, s.reports, s.logger)
	s.metrics.IncCustomerWrite(events.ActionUpdated)
	s.events.Emit(ctx, events.EntityCustomer, idString(id), events.ActionUpdated, c)
	return c, nil
}

// Delete removes a customer that has no orders.
func (s *CustomerService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteCustomer(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrCustomerNotFound):
			return ErrCustomerNotFound
		case errors.Is(err, repository.ErrCustomerHasOrders):
			return ErrCustomerHasOrders
		}
		return fmt.Errorf("failed to delete customer: %w", err)
	}

	s.metrics.IncCustomerWrite(events.ActionDeleted)
	s.events.Emit(ctx, events.EntityCustomer, idString(id), events.ActionDeleted, nil)
	return nil
}

// Territories returns the sorted distinct territory names.
func (s *CustomerService) Territories(ctx context.Context) ([]string, error) {
	territories, err := s.store.ListTerritories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list territories: %w", err)
	}
	return territories, nil
}

// ImportResult summarises a spreadsheet import.
type ImportResult struct {
	Created int                 `json:"created"`
	IDs     []int64             `json:"ids"`
	Errors  []importer.RowError `json:"errors"`
}

// Import creates every valid customer in the spreadsheet in one transaction.
// Invalid rows are reported and skipped.
func (s *CustomerService) Import(ctx context.Context, r io.Reader, filename string) (*ImportResult, error) {
	parsed, err := importer.Customers(r, filename)
	if err != nil {
		return nil, invalid("file", "%s", err.Error())
	}

	res := &ImportResult{IDs: []int64{}, Errors: parsed.Errors}
	if res.Errors == nil {
		res.Errors = []importer.RowError{}
	}

	valid := make([]model.Customer, 0, len(parsed.Customers))
	for i, c := range parsed.Customers {
		in := CustomerInput{
			Name:        c.Name,
			Address:     c.Address,
			DeliveryDay: c.DeliveryDay,
			AccountType: c.AccountType,
			Territory:   c.Territory,
		}
		checked, err := in.toCustomer()
		if err != nil {
			res.Errors = append(res.Errors, importer.RowError{Row: parsed.Rows[i], Error: err.Error()})
			continue
		}
		valid = append(valid, *checked)
	}

	if len(valid) == 0 {
		return res, nil
	}

	ids, err := s.store.CreateCustomers(ctx, valid)
	if err != nil {
		return nil, fmt.Errorf("failed to import customers: %w", err)
	}

	res.Created = len(ids)
	res.IDs = ids
	for i, id := range ids {
		valid[i].ID = id
		s.metrics.IncCustomerWrite(events.ActionImported)
		s.events.Emit(ctx, events.EntityCustomer, idString(id), events.ActionImported, valid[i])
	}

	s.logger.Info("customers imported",
		"file", filename,
		"created", res.Created,
		"rejected", len(res.Errors),
	)
	return res, nil
}

func (in CustomerInput) toCustomer() (*model.Customer, error) {
	c := &model.Customer{
		Name:        strings.TrimSpace(in.Name),
		Address:     strings.TrimSpace(in.Address),
		AccountType: strings.TrimSpace(in.AccountType),
		Territory:   strings.TrimSpace(in.Territory),
	}

	for _, f := range []struct {
		field string
		value string
		max   int
	}{
		{"name", c.Name, maxNameLength},
		{"address", c.Address, maxAddressLength},
		{"account_type", c.AccountType, maxAccountTypeLength},
		{"territory", c.Territory, maxTerritoryLength},
	} {
		if f.value == "" {
			return nil, invalid(f.field, "is required")
		}
		if utf8.RuneCountInString(f.value) > f.max {
			return nil, invalid(f.field, "must be at most %d characters", f.max)
		}
	}

	day, ok := model.NormalizeDeliveryDay(in.DeliveryDay)
	if !ok {
		return nil, invalid("delivery_day", "must be a day of the week")
	}
	c.DeliveryDay = day

	return c, nil
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}
