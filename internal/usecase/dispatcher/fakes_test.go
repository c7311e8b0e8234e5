package dispatcher

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
)

// memStore is an in-memory rendition of every domain store with the same conflict rules
// the postgres repositories apply. failures injects an error for a "Store.Method" call.
type memStore struct {
	mu sync.Mutex

	transactions map[string]entity.Transaction
	enrollments  map[string]entity.Enrollment
	commissions  map[string]entity.Commission
	ledger       map[string]entity.LedgerEntry
	contribution map[string]struct{}
	metrics      map[string]int64
	identities   map[string]entity.IdentitySync
	leads        map[string]entity.Lead
	flags        map[string]entity.AuditFlag
	commands     map[string]entity.Command
	logs         map[uuid.UUID]entity.ActionLogEntry

	failures map[string]error
	calls    []string
}

func newMemStore() *memStore {
	return &memStore{
		transactions: make(map[string]entity.Transaction),
		enrollments:  make(map[string]entity.Enrollment),
		commissions:  make(map[string]entity.Commission),
		ledger:       make(map[string]entity.LedgerEntry),
		contribution: make(map[string]struct{}),
		metrics:      make(map[string]int64),
		identities:   make(map[string]entity.IdentitySync),
		leads:        make(map[string]entity.Lead),
		flags:        make(map[string]entity.AuditFlag),
		commands:     make(map[string]entity.Command),
		logs:         make(map[uuid.UUID]entity.ActionLogEntry),
		failures:     make(map[string]error),
	}
}

func (s *memStore) stores() Stores {
	return Stores{
		Transactions: memTransactions{s},
		Enrollments:  memEnrollments{s},
		Commissions:  memCommissions{s},
		Ledger:       memLedger{s},
		Metrics:      memMetrics{s},
		Identities:   memIdentities{s},
		Leads:        memLeads{s},
		AuditFlags:   memAuditFlags{s},
		Commands:     memCommands{s},
	}
}

// call records the invocation and returns the injected failure, if any. Callers hold mu.
func (s *memStore) call(name string) error {
	s.calls = append(s.calls, name)
	return s.failures[name]
}

func (s *memStore) fail(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[name] = err
}

func (s *memStore) heal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]error)
}

// domainState is everything a dispatch may change, without the action log.
type domainState struct {
	Transactions map[string]entity.Transaction
	Enrollments  map[string]entity.Enrollment
	Commissions  map[string]entity.Commission
	Ledger       map[string]entity.LedgerEntry
	Metrics      map[string]int64
	Identities   map[string]entity.IdentitySync
	Leads        map[string]entity.Lead
	Flags        []string
	Commands     []string
}

func (s *memStore) state() domainState {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds := domainState{
		Transactions: cloneMap(s.transactions),
		Enrollments:  cloneMap(s.enrollments),
		Commissions:  cloneMap(s.commissions),
		Ledger:       make(map[string]entity.LedgerEntry, len(s.ledger)),
		Metrics:      cloneMap(s.metrics),
		Identities:   cloneMap(s.identities),
		Leads:        cloneMap(s.leads),
	}
	for k, e := range s.ledger {
		e.ID = uuid.Nil
		ds.Ledger[k] = e
	}
	for k := range s.flags {
		ds.Flags = append(ds.Flags, k)
	}
	for k := range s.commands {
		ds.Commands = append(ds.Commands, k)
	}
	slices.Sort(ds.Flags)
	slices.Sort(ds.Commands)

	return ds
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) commandList() []entity.Command {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]entity.Command, 0, len(s.commands))
	for _, c := range s.commands {
		out = append(out, c)
	}
	return out
}

func (s *memStore) logsFor(eventID uuid.UUID) []entity.ActionLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []entity.ActionLogEntry
	for _, e := range s.logs {
		if e.IntakeEventID == eventID {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b entity.ActionLogEntry) int { return a.Attempt - b.Attempt })
	return out
}

type memTransactions struct{ s *memStore }

func (m memTransactions) UpsertApproved(_ context.Context, tx *entity.Transaction) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.call("Transactions.UpsertApproved"); err != nil {
		return err
	}

	next := *tx
	if cur, ok := m.s.transactions[tx.TransactionID]; ok && cur.Status != entity.TransactionApproved {
		next.Status = cur.Status
	}
	m.s.transactions[tx.TransactionID] = next
	return nil
}

func (m memTransactions) UpdateStatus(_ context.Context, id string, status entity.TransactionStatus, at time.Time) (*entity.Transaction, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.call("Transactions.UpdateStatus"); err != nil {
		return nil, err
	}

	cur, ok := m.s.transactions[id]
	if !ok {
		return nil, errs.ErrRecordNotFound
	}
	cur.Status = status
	cur.UpdatedAt = at
	m.s.transactions[id] = cur
	return &cur, nil
}

func (m memTransactions) GetByID(_ context.Context, id string) (*entity.Transaction, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.call("Transactions.GetByID"); err != nil {
		return nil, err
	}

	cur, ok := m.s.transactions[id]
	if !ok {
		return nil, errs.ErrRecordNotFound
	}
	return &cur, nil
}

func (m memTransactions) HasApprovedForEmail(_ context.Context, email string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.call("Transactions.HasApprovedForEmail"); err != nil {
		return false, err
	}

	for _, tx := range m.s.transactions {
		if tx.BuyerEmail == email && tx.Status == entity.TransactionApproved {
			return true, nil
		}
	}
	return false, nil
}

type memEnrollments struct{ s *memStore }

func (m memEnrollments) Upsert(_ context.Context, e *entity.Enrollment) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.call("Enrollments.Upsert"); err != nil {
		return err
	}

	next := *e
	if cur, ok := m.s.enrollments[e.Email]; ok {
		next.EnrolledAt = cur.EnrolledAt
		revoked := cur.Status != entity.EnrollmentActive && cur.Status != entity.EnrollmentOverdue
		if revoked && cur.TransactionID != nil && e.TransactionID != nil && *cur.TransactionID == *e.TransactionID {
			next.Status = cur.Status
		}
	}
	m.s.enrollments[e.Email] = next
	return nil
}

func (m memEnrollments) UpdateStatus(_ context.Context, u entity.EnrollmentStatusUpdate) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.call("Enrollments.UpdateStatus"); err != nil {
		return err
	}

	cur, ok := m.s.enrollments[u.Email]
	if !ok {
		return errs.ErrRecordNotFound
	}
	if u.TransactionID != "" && (cur.TransactionID == nil || *cur.TransactionID != u.TransactionID) {
		return errs.ErrRecordNotFound
	}
	cur.Status = u.Status
	cur.UpdatedAt = u.UpdatedAt
	m.s.enrollments[u.Email] = cur
	return nil
}

type memCommissions struct{ s *memStore }

func (m memCommissions) Insert(_ context.Context, c *entity.Commission) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.call("Commissions.Insert"); err != nil {
		return false, err
	}

	key := c.TransactionID + "/" + c.AffiliateCode
	if _, ok := m.s.commissions[key]; ok {
		return false, nil
	}
	m.s.commissions[key] = *c
	return true, nil
}

type memLedger struct{ s *memStore }

func (m memLedger) Insert(_ context.Context, e *entity.LedgerEntry) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.call("Ledger.Insert"); err != nil {
		return false, err
	}

	key := e.TransactionID + "/" + string(e.Kind)
	if _, ok := m.s.ledger[key]; ok {
		return false, nil
	}
	m.s.ledger[key] = *e
	return true, nil
}

type memMetrics struct{ s *memStore }

func metricKey(date time.Time, name string) string {
	return date.Format(time.DateOnly) + "/" + name
}

func (m memMetrics) Add(_ context.Context, c entity.MetricContribution) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.call("Metrics.Add"); err != nil {
		return false, err
	}

	key := metricKey(c.Date, c.Name)
	if _, ok := m.s.contribution[key+"/"+c.ContributionKey]; ok {
		return false, nil
	}
	m.s.contribution[key+"/"+c.ContributionKey] = struct{}{}
	m.s.metrics[key] += c.Value
	return true, nil
}

func (m memMetrics) ListDaily(_ context.Context, date time.Time) ([]entity.DailyMetric, error) {
	return nil, nil
}

type memIdentities struct{ s *memStore }

func (m memIdentities) Upsert(_ context.Context, i *entity.IdentitySync) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.call("Identities.Upsert"); err != nil {
		return err
	}

	next := *i
	if cur, ok := m.s.identities[i.ExternalUserID]; ok {
		next.PaymentConfirmed = cur.PaymentConfirmed
	}
	m.s.identities[i.ExternalUserID] = next
	return nil
}

func (m memIdentities) SetPaymentConfirmed(_ context.Context, id string, confirmed bool) error {
	return m.update("Identities.SetPaymentConfirmed", id, func(i *entity.IdentitySync) { i.PaymentConfirmed = confirmed })
}

func (m memIdentities) Deactivate(_ context.Context, id string) error {
	return m.update("Identities.Deactivate", id, func(i *entity.IdentitySync) { i.Active = false })
}

func (m memIdentities) update(name, id string, f func(*entity.IdentitySync)) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.call(name); err != nil {
		return err
	}

	cur, ok := m.s.identities[id]
	if !ok {
		return errs.ErrRecordNotFound
	}
	f(&cur)
	m.s.identities[id] = cur
	return nil
}

type memLeads struct{ s *memStore }

func (m memLeads) Upsert(_ context.Context, lead *entity.Lead) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.call("Leads.Upsert"); err != nil {
		return err
	}

	cur, ok := m.s.leads[lead.Phone]
	if !ok {
		next := *lead
		next.Tags = slices.Clone(lead.Tags)
		slices.Sort(next.Tags)
		m.s.leads[lead.Phone] = next
		return nil
	}

	if lead.Name != "" {
		cur.Name = lead.Name
	}
	if lead.Email != "" {
		cur.Email = lead.Email
	}
	if lead.LastMessage != "" {
		cur.LastMessage = lead.LastMessage
	}
	if lead.LastContactAt.After(cur.LastContactAt) {
		cur.LastContactAt = lead.LastContactAt
	}
	cur.Tags = append(slices.Clone(cur.Tags), lead.Tags...)
	slices.Sort(cur.Tags)
	cur.Tags = slices.Compact(cur.Tags)
	m.s.leads[lead.Phone] = cur
	return nil
}

type memAuditFlags struct{ s *memStore }

func (m memAuditFlags) Create(_ context.Context, flag *entity.AuditFlag) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.call("AuditFlags.Create"); err != nil {
		return false, err
	}

	key := flag.SubjectKey + "/" + flag.Reason
	if _, ok := m.s.flags[key]; ok {
		return false, nil
	}
	m.s.flags[key] = *flag
	return true, nil
}

type memCommands struct{ s *memStore }

func (m memCommands) Enqueue(_ context.Context, cmd *entity.Command) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.call("Commands.Enqueue"); err != nil {
		return false, err
	}

	key := cmd.OriginEventID.String() + "/" + cmd.Action
	if _, ok := m.s.commands[key]; ok {
		return false, nil
	}
	m.s.commands[key] = *cmd
	return true, nil
}

func (m memCommands) ListByOrigin(context.Context, uuid.UUID) ([]*entity.Command, error) {
	return nil, nil
}

func (m memCommands) ListUnpublished(context.Context, int) ([]*entity.Command, error) {
	return nil, nil
}

func (m memCommands) MarkPublished(context.Context, uuid.UUIDs, time.Time) error {
	return nil
}

type memActionLog struct{ s *memStore }

func (m memActionLog) Create(_ context.Context, entry *entity.ActionLogEntry) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.call("ActionLog.Create"); err != nil {
		return err
	}

	m.s.logs[entry.ID] = *entry
	return nil
}

func (m memActionLog) Update(_ context.Context, entry *entity.ActionLogEntry) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.call("ActionLog.Update"); err != nil {
		return err
	}

	if _, ok := m.s.logs[entry.ID]; !ok {
		return errs.ErrRecordNotFound
	}
	m.s.logs[entry.ID] = *entry
	return nil
}

func (m memActionLog) ListByIntakeEvent(_ context.Context, id uuid.UUID) ([]*entity.ActionLogEntry, error) {
	out := make([]*entity.ActionLogEntry, 0)
	for _, e := range m.s.logsFor(id) {
		out = append(out, &e)
	}
	return out, nil
}
