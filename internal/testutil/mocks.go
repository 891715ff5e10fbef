// Package testutil содержит in-memory реализации репозиториев для
// тестов пайплайна, workflow и sweep.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"freightwatch/internal/domain"
	"freightwatch/internal/repository"
	"freightwatch/pkg/apperror"
)

// NewRepositories создаёт полный набор in-memory репозиториев
func NewRepositories() *repository.Repositories {
	return &repository.Repositories{
		Customers:     NewCustomerRepo(),
		Routes:        NewRouteRepo(),
		Deliveries:    NewDeliveryRepo(),
		Thresholds:    NewThresholdRepo(),
		Snapshots:     NewSnapshotRepo(),
		Notifications: NewNotificationRepo(),
		Executions:    NewExecutionRepo(),
	}
}

// ==================== Customer ====================

type CustomerRepo struct {
	mu    sync.Mutex
	items map[string]*domain.Customer
	seq   int
}

func NewCustomerRepo() *CustomerRepo {
	return &CustomerRepo{items: make(map[string]*domain.Customer)}
}

func (r *CustomerRepo) Create(ctx context.Context, c *domain.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if c.ID == "" {
		c.ID = fmt.Sprintf("cust-%d", r.seq)
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	copied := *c
	r.items[c.ID] = &copied
	return nil
}

func (r *CustomerRepo) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.items[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, apperror.ErrCustomerNotFound
}

func (r *CustomerRepo) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.items {
		if c.Email == email {
			copied := *c
			return &copied, nil
		}
	}
	return nil, apperror.ErrCustomerNotFound
}

func (r *CustomerRepo) List(ctx context.Context, opts *repository.ListOptions) ([]*domain.Customer, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.Customer
	for _, c := range r.items {
		copied := *c
		result = append(result, &copied)
	}
	return result, int64(len(result)), nil
}

func (r *CustomerRepo) Update(ctx context.Context, c *domain.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[c.ID]; !ok {
		return apperror.ErrCustomerNotFound
	}
	c.UpdatedAt = time.Now()
	copied := *c
	r.items[c.ID] = &copied
	return nil
}

func (r *CustomerRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return apperror.ErrCustomerNotFound
	}
	delete(r.items, id)
	return nil
}

// ==================== Route ====================

type RouteRepo struct {
	mu    sync.Mutex
	items map[string]*domain.Route
	seq   int

	// FailUpdateTraffic заставляет UpdateTraffic возвращать ошибку
	FailUpdateTraffic bool
}

func NewRouteRepo() *RouteRepo {
	return &RouteRepo{items: make(map[string]*domain.Route)}
}

func (r *RouteRepo) Create(ctx context.Context, route *domain.Route) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if route.ID == "" {
		route.ID = fmt.Sprintf("route-%d", r.seq)
	}
	route.CreatedAt = time.Now()
	route.UpdatedAt = route.CreatedAt
	copied := *route
	r.items[route.ID] = &copied
	return nil
}

func (r *RouteRepo) GetByID(ctx context.Context, id string) (*domain.Route, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if route, ok := r.items[id]; ok {
		copied := *route
		return &copied, nil
	}
	return nil, apperror.ErrRouteNotFound
}

func (r *RouteRepo) List(ctx context.Context, opts *repository.ListOptions) ([]*domain.Route, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.Route
	for _, route := range r.items {
		copied := *route
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	total := int64(len(result))

	if opts != nil {
		opts.Normalize(1000)
		if opts.Offset >= len(result) {
			return nil, total, nil
		}
		end := opts.Offset + opts.Limit
		if end > len(result) {
			end = len(result)
		}
		result = result[opts.Offset:end]
	}

	return result, total, nil
}

func (r *RouteRepo) Update(ctx context.Context, route *domain.Route) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[route.ID]; !ok {
		return apperror.ErrRouteNotFound
	}
	route.UpdatedAt = time.Now()
	copied := *route
	r.items[route.ID] = &copied
	return nil
}

func (r *RouteRepo) UpdateTraffic(ctx context.Context, routeID string, distanceMeters, normalSec, currentSec int, condition domain.TrafficCondition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailUpdateTraffic {
		return apperror.New(apperror.CodeRepository, "forced update traffic failure")
	}
	route, ok := r.items[routeID]
	if !ok {
		return apperror.ErrRouteNotFound
	}
	route.ApplyTraffic(distanceMeters, normalSec, currentSec, condition)
	route.UpdatedAt = time.Now()
	return nil
}

func (r *RouteRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return apperror.ErrRouteNotFound
	}
	delete(r.items, id)
	return nil
}

// ==================== Delivery ====================

type DeliveryRepo struct {
	mu    sync.Mutex
	items map[string]*domain.Delivery
	seq   int
}

func NewDeliveryRepo() *DeliveryRepo {
	return &DeliveryRepo{items: make(map[string]*domain.Delivery)}
}

func (r *DeliveryRepo) Create(ctx context.Context, d *domain.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if d.ID == "" {
		d.ID = fmt.Sprintf("dlv-%d", r.seq)
	}
	if d.Status == "" {
		d.Status = domain.StatusPending
	}
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	copied := *d
	r.items[d.ID] = &copied
	return nil
}

func (r *DeliveryRepo) GetByID(ctx context.Context, id string) (*domain.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.items[id]; ok {
		copied := *d
		return &copied, nil
	}
	return nil, apperror.ErrDeliveryNotFound
}

func (r *DeliveryRepo) GetByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.items {
		if d.TrackingNumber == trackingNumber {
			copied := *d
			return &copied, nil
		}
	}
	return nil, apperror.ErrDeliveryNotFound
}

func (r *DeliveryRepo) List(ctx context.Context, opts *repository.ListOptions) ([]*domain.Delivery, int64, error) {
	return r.listFiltered("", opts)
}

func (r *DeliveryRepo) ListByStatus(ctx context.Context, status domain.DeliveryStatus, opts *repository.ListOptions) ([]*domain.Delivery, int64, error) {
	return r.listFiltered(status, opts)
}

func (r *DeliveryRepo) listFiltered(status domain.DeliveryStatus, opts *repository.ListOptions) ([]*domain.Delivery, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.Delivery
	for _, d := range r.items {
		if status != "" && d.Status != status {
			continue
		}
		copied := *d
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, int64(len(result)), nil
}

func (r *DeliveryRepo) Update(ctx context.Context, d *domain.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[d.ID]; !ok {
		return apperror.ErrDeliveryNotFound
	}
	d.UpdatedAt = time.Now()
	copied := *d
	r.items[d.ID] = &copied
	return nil
}

func (r *DeliveryRepo) UpdateStatus(ctx context.Context, id string, from, to domain.DeliveryStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !domain.CanTransition(from, to) {
		return apperror.Newf(apperror.CodeInvalidTransition,
			"cannot transition delivery from %s to %s", from, to)
	}
	d, ok := r.items[id]
	if !ok {
		return apperror.ErrDeliveryNotFound
	}
	if d.Status != from {
		return apperror.Newf(apperror.CodeInvalidTransition,
			"delivery status changed concurrently: expected %s, found %s", from, d.Status)
	}
	d.Status = to
	d.UpdatedAt = time.Now()
	return nil
}

func (r *DeliveryRepo) IncrementChecks(ctx context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.items[id]
	if !ok {
		return 0, apperror.ErrDeliveryNotFound
	}
	d.ChecksPerformed++
	d.UpdatedAt = time.Now()
	return d.ChecksPerformed, nil
}

func (r *DeliveryRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return apperror.ErrDeliveryNotFound
	}
	delete(r.items, id)
	return nil
}

// ==================== Threshold ====================

type ThresholdRepo struct {
	mu    sync.Mutex
	items map[string]*domain.Threshold
	seq   int
}

func NewThresholdRepo() *ThresholdRepo {
	return &ThresholdRepo{items: make(map[string]*domain.Threshold)}
}

func (r *ThresholdRepo) Create(ctx context.Context, t *domain.Threshold) error {
	if err := t.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if t.ID == "" {
		t.ID = fmt.Sprintf("th-%d", r.seq)
	}
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	copied := *t
	r.items[t.ID] = &copied
	return nil
}

func (r *ThresholdRepo) GetByID(ctx context.Context, id string) (*domain.Threshold, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.items[id]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, apperror.ErrThresholdNotFound
}

func (r *ThresholdRepo) List(ctx context.Context) ([]*domain.Threshold, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.Threshold
	for _, t := range r.items {
		copied := *t
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *ThresholdRepo) GetDefault(ctx context.Context) (*domain.Threshold, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.items {
		if t.IsDefault {
			copied := *t
			return &copied, nil
		}
	}
	return nil, apperror.ErrThresholdNotFound
}

func (r *ThresholdRepo) SetDefault(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	target, ok := r.items[id]
	if !ok {
		return apperror.ErrThresholdNotFound
	}
	for _, t := range r.items {
		t.IsDefault = false
	}
	target.IsDefault = true
	return nil
}

func (r *ThresholdRepo) Update(ctx context.Context, t *domain.Threshold) error {
	if err := t.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[t.ID]; !ok {
		return apperror.ErrThresholdNotFound
	}
	copied := *t
	r.items[t.ID] = &copied
	return nil
}

func (r *ThresholdRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return apperror.ErrThresholdNotFound
	}
	if t.IsDefault {
		return apperror.New(apperror.CodeDefaultThreshold, "cannot delete the default threshold")
	}
	if t.IsSystem {
		return apperror.New(apperror.CodeSystemThreshold, "cannot delete a system threshold")
	}
	delete(r.items, id)
	return nil
}

// ==================== Snapshot ====================

type SnapshotRepo struct {
	mu    sync.Mutex
	items []*domain.TrafficSnapshot
	seq   int

	// FailCreate заставляет Create возвращать ошибку
	FailCreate bool
}

func NewSnapshotRepo() *SnapshotRepo {
	return &SnapshotRepo{}
}

func (r *SnapshotRepo) Create(ctx context.Context, s *domain.TrafficSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailCreate {
		return apperror.New(apperror.CodeRepository, "forced snapshot failure")
	}
	r.seq++
	if s.ID == "" {
		s.ID = fmt.Sprintf("snap-%d", r.seq)
	}
	copied := *s
	r.items = append(r.items, &copied)
	return nil
}

func (r *SnapshotRepo) ListByRoute(ctx context.Context, routeID string, opts *repository.ListOptions) ([]*domain.TrafficSnapshot, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.TrafficSnapshot
	for _, s := range r.items {
		if s.RouteID == routeID {
			copied := *s
			result = append(result, &copied)
		}
	}
	return result, int64(len(result)), nil
}

func (r *SnapshotRepo) LatestByRoute(ctx context.Context, routeID string) (*domain.TrafficSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.items) - 1; i >= 0; i-- {
		if r.items[i].RouteID == routeID {
			copied := *r.items[i]
			return &copied, nil
		}
	}
	return nil, apperror.New(apperror.CodeNotFound, "no snapshots for route")
}

// All возвращает все снапшоты
func (r *SnapshotRepo) All() []*domain.TrafficSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.TrafficSnapshot{}, r.items...)
}

// ==================== Notification ====================

type NotificationRepo struct {
	mu    sync.Mutex
	items []*domain.Notification
	seq   int
}

func NewNotificationRepo() *NotificationRepo {
	return &NotificationRepo{}
}

func (r *NotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if n.ID == "" {
		n.ID = fmt.Sprintf("ntf-%d", r.seq)
	}
	n.CreatedAt = time.Now()
	copied := *n
	r.items = append(r.items, &copied)
	return nil
}

func (r *NotificationRepo) ListByDelivery(ctx context.Context, deliveryID string, opts *repository.ListOptions) ([]*domain.Notification, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.Notification
	for _, n := range r.items {
		if n.DeliveryID == deliveryID {
			copied := *n
			result = append(result, &copied)
		}
	}
	return result, int64(len(result)), nil
}

func (r *NotificationRepo) LatestSentByDelivery(ctx context.Context, deliveryID string) (*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.Notification
	for _, n := range r.items {
		if n.DeliveryID != deliveryID || n.Status != domain.NotificationSent || n.SentAt == nil {
			continue
		}
		if latest == nil || n.SentAt.After(*latest.SentAt) {
			latest = n
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

// All возвращает все нотификации
func (r *NotificationRepo) All() []*domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.Notification{}, r.items...)
}

// ==================== Execution ====================

type ExecutionRepo struct {
	mu    sync.Mutex
	items []*domain.WorkflowExecution
	seq   int
}

func NewExecutionRepo() *ExecutionRepo {
	return &ExecutionRepo{}
}

func (r *ExecutionRepo) Create(ctx context.Context, e *domain.WorkflowExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if e.ID == "" {
		e.ID = fmt.Sprintf("exec-%d", r.seq)
	}
	copied := *e
	r.items = append(r.items, &copied)
	return nil
}

func (r *ExecutionRepo) find(workflowID, runID string) *domain.WorkflowExecution {
	for _, e := range r.items {
		if e.WorkflowID == workflowID && e.RunID == runID {
			return e
		}
	}
	return nil
}

func (r *ExecutionRepo) GetByWorkflowID(ctx context.Context, workflowID string) (*domain.WorkflowExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.WorkflowExecution
	for _, e := range r.items {
		if e.WorkflowID != workflowID {
			continue
		}
		if latest == nil || e.StartedAt.After(latest.StartedAt) {
			latest = e
		}
	}
	if latest == nil {
		return nil, apperror.ErrWorkflowNotFound
	}
	copied := *latest
	return &copied, nil
}

func (r *ExecutionRepo) GetByWorkflowAndRun(ctx context.Context, workflowID, runID string) (*domain.WorkflowExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e := r.find(workflowID, runID); e != nil {
		copied := *e
		return &copied, nil
	}
	return nil, apperror.ErrWorkflowNotFound
}

func (r *ExecutionRepo) ListRunning(ctx context.Context) ([]*domain.WorkflowExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.WorkflowExecution
	for _, e := range r.items {
		if e.Status == domain.ExecutionRunning {
			copied := *e
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *ExecutionRepo) ListByDelivery(ctx context.Context, deliveryID string, opts *repository.ListOptions) ([]*domain.WorkflowExecution, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.WorkflowExecution
	for _, e := range r.items {
		if e.DeliveryID == deliveryID {
			copied := *e
			result = append(result, &copied)
		}
	}
	return result, int64(len(result)), nil
}

func (r *ExecutionRepo) UpdateStatus(ctx context.Context, workflowID, runID string, status domain.ExecutionStatus, completedAt *time.Time, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.find(workflowID, runID)
	if e == nil {
		return apperror.ErrWorkflowNotFound
	}
	e.Status = status
	e.CompletedAt = completedAt
	e.Error = errMsg
	return nil
}

func (r *ExecutionRepo) UpdateSteps(ctx context.Context, workflowID, runID string, steps domain.ExecutionSteps) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.find(workflowID, runID)
	if e == nil {
		return apperror.ErrWorkflowNotFound
	}
	e.Steps = steps
	return nil
}

// Интерфейсы удовлетворены
var (
	_ repository.CustomerRepository     = (*CustomerRepo)(nil)
	_ repository.RouteRepository        = (*RouteRepo)(nil)
	_ repository.DeliveryRepository     = (*DeliveryRepo)(nil)
	_ repository.ThresholdRepository    = (*ThresholdRepo)(nil)
	_ repository.SnapshotRepository     = (*SnapshotRepo)(nil)
	_ repository.NotificationRepository = (*NotificationRepo)(nil)
	_ repository.ExecutionRepository    = (*ExecutionRepo)(nil)
)
