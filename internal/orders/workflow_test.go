package orders_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skrewild/shop/internal/models"
	"github.com/Skrewild/shop/internal/notify"
	"github.com/Skrewild/shop/internal/orders"
	"github.com/Skrewild/shop/internal/repository"
)

// memLedger reproduces the database's conditional-update semantics in
// memory: every transition checks the expected source status under one
// lock, so at most one concurrent caller wins.
type memLedger struct {
	mu        sync.Mutex
	users     map[string]models.User
	items     map[int]*models.Product
	lines     map[int64]*memLine
	orders    map[int64][]models.OrderItem
	nextLine  int64
	nextOrder int64

	// beforeFlip, when set, runs between SubmitCart's read phase and its
	// guarded bulk flip, outside the lock. Lets tests interleave two
	// submits the way two transactions interleave on the database.
	beforeFlip func()
}

type memLine struct {
	id        int64
	email     string
	itemID    int
	status    models.Status
	unitPrice *float64
	createdAt time.Time
}

func newMemLedger() *memLedger {
	return &memLedger{
		users:  map[string]models.User{},
		items:  map[int]*models.Product{},
		lines:  map[int64]*memLine{},
		orders: map[int64][]models.OrderItem{},
	}
}

func (m *memLedger) addUser(u models.User) { m.users[u.Email] = u }

func (m *memLedger) addItem(p models.Product) { m.items[p.ID] = &p }

func (m *memLedger) addToCart(email string, itemID int) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextLine++
	m.lines[m.nextLine] = &memLine{
		id:        m.nextLine,
		email:     email,
		itemID:    itemID,
		status:    models.StatusInCart,
		createdAt: time.Now(),
	}
	return m.nextLine
}

func (m *memLedger) status(id int64) models.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lines[id].status
}

func (m *memLedger) stock(itemID int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[itemID].Stock
}

func (m *memLedger) line(id int64, item *models.Product, l *memLine) models.CartLine {
	price := item.Price
	if l.unitPrice != nil {
		price = *l.unitPrice
	}
	return models.CartLine{
		ID:        l.id,
		Email:     l.email,
		ItemID:    l.itemID,
		Name:      item.Name,
		Price:     price,
		Status:    l.status,
		CreatedAt: l.createdAt,
	}
}

func (m *memLedger) ConfirmItem(ctx context.Context, id int64) (*repository.ConfirmedItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lines[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	item := m.items[l.itemID]
	if item.Stock <= 0 {
		return nil, fmt.Errorf("%w: %q", repository.ErrOutOfStock, item.Name)
	}
	if l.status != models.StatusInCart {
		return nil, repository.ErrNotFound
	}
	price := item.Price
	l.unitPrice = &price
	l.status = models.StatusWaiting

	return &repository.ConfirmedItem{Line: m.line(id, item, l), Owner: m.users[l.email]}, nil
}

func (m *memLedger) SubmitCart(ctx context.Context, email string) (*repository.Submission, error) {
	m.mu.Lock()

	type agg struct {
		item *models.Product
		qty  int
	}
	carted := map[int]*agg{}
	var order []int
	expected := 0
	for _, l := range m.lines {
		if l.email != email || l.status != models.StatusInCart {
			continue
		}
		expected++
		if a, ok := carted[l.itemID]; ok {
			a.qty++
		} else {
			carted[l.itemID] = &agg{item: m.items[l.itemID], qty: 1}
			order = append(order, l.itemID)
		}
	}
	if len(carted) == 0 {
		m.mu.Unlock()
		return nil, repository.ErrEmptyCart
	}

	for _, itemID := range order {
		a := carted[itemID]
		reserved := 0
		for _, l := range m.lines {
			if l.itemID == itemID && l.status == models.StatusWaiting {
				reserved++
			}
		}
		if a.item.Stock-reserved < a.qty {
			m.mu.Unlock()
			return nil, fmt.Errorf("%w for %q: requested %d, available %d",
				repository.ErrInsufficientStock, a.item.Name, a.qty, a.item.Stock-reserved)
		}
	}
	m.mu.Unlock()

	if m.beforeFlip != nil {
		m.beforeFlip()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// The bulk flip must move exactly the rows the read phase aggregated;
	// anything else means a concurrent submit got there first and the
	// whole operation fails without writing an order.
	current := 0
	for _, l := range m.lines {
		if l.email == email && l.status == models.StatusInCart {
			current++
		}
	}
	if current != expected {
		return nil, fmt.Errorf("%w: cart was modified concurrently", repository.ErrNotFound)
	}

	m.nextOrder++
	sub := repository.Submission{OrderID: m.nextOrder, Owner: m.users[email]}
	for _, itemID := range order {
		a := carted[itemID]
		line := models.OrderItem{
			OrderID:   sub.OrderID,
			ItemID:    itemID,
			Name:      a.item.Name,
			UnitPrice: a.item.Price,
			Quantity:  a.qty,
		}
		sub.Lines = append(sub.Lines, line)
		sub.Total += line.UnitPrice * float64(line.Quantity)
	}
	m.orders[sub.OrderID] = sub.Lines

	for _, l := range m.lines {
		if l.email == email && l.status == models.StatusInCart {
			price := m.items[l.itemID].Price
			l.unitPrice = &price
			l.status = models.StatusWaiting
		}
	}

	return &sub, nil
}

func (m *memLedger) ApproveItem(ctx context.Context, id int64) (*models.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lines[id]
	if !ok || l.status != models.StatusWaiting {
		return nil, repository.ErrNotFound
	}
	item := m.items[l.itemID]
	if item.Stock <= 0 {
		return nil, fmt.Errorf("%w: %q", repository.ErrOutOfStock, item.Name)
	}
	item.Stock--
	l.status = models.StatusOrdered

	line := m.line(id, item, l)
	return &line, nil
}

func (m *memLedger) CancelItem(ctx context.Context, id int64, email string) (*repository.ConfirmedItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lines[id]
	if !ok || l.email != email || l.status != models.StatusWaiting {
		return nil, repository.ErrNotFound
	}
	l.status = models.StatusCancelled

	return &repository.ConfirmedItem{Line: m.line(id, m.items[l.itemID], l), Owner: m.users[email]}, nil
}

func (m *memLedger) GetWaiting(ctx context.Context) ([]models.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lines := []models.CartLine{}
	for _, l := range m.lines {
		if l.status == models.StatusWaiting {
			lines = append(lines, m.line(l.id, m.items[l.itemID], l))
		}
	}
	return lines, nil
}

func (m *memLedger) GetAllOrders(ctx context.Context) ([]repository.OrderView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	views := []repository.OrderView{}
	for id, lines := range m.orders {
		views = append(views, repository.OrderView{Order: models.Order{ID: id}, Lines: lines})
	}
	return views, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Dispatch(evt notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
}

func (n *recordingNotifier) all() []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Event(nil), n.events...)
}

func setup() (*memLedger, *recordingNotifier, *orders.Workflow) {
	ledger := newMemLedger()
	notifier := &recordingNotifier{}
	return ledger, notifier, orders.NewWorkflow(ledger, notifier)
}

func TestConfirmItemMovesLineToWaiting(t *testing.T) {
	ledger, notifier, w := setup()
	ledger.addUser(models.User{Email: "a@x.com", Name: "Alice", City: "Riga"})
	ledger.addItem(models.Product{ID: 1, Name: "Hat", Price: 10.00, Stock: 1})
	id := ledger.addToCart("a@x.com", 1)

	require.NoError(t, w.ConfirmItem(context.Background(), id))

	assert.Equal(t, models.StatusWaiting, ledger.status(id))

	events := notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, "a@x.com", events[0].Email)
	assert.InDelta(t, 10.00, events[0].Total, 1e-9)
	assert.False(t, events[0].Cancelled)
	require.NotNil(t, events[0].User)
	assert.Equal(t, "Alice", events[0].User.Name)
}

func TestConfirmItemUnknownID(t *testing.T) {
	_, notifier, w := setup()

	err := w.ConfirmItem(context.Background(), 42)

	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Empty(t, notifier.all())
}

func TestConfirmItemOutOfStock(t *testing.T) {
	ledger, notifier, w := setup()
	ledger.addUser(models.User{Email: "a@x.com"})
	ledger.addItem(models.Product{ID: 1, Name: "Hat", Price: 10.00, Stock: 0})
	id := ledger.addToCart("a@x.com", 1)

	err := w.ConfirmItem(context.Background(), id)

	assert.ErrorIs(t, err, repository.ErrOutOfStock)
	assert.Equal(t, models.StatusInCart, ledger.status(id))
	assert.Empty(t, notifier.all())
}

func TestConfirmItemConcurrentRace(t *testing.T) {
	ledger, notifier, w := setup()
	ledger.addUser(models.User{Email: "a@x.com"})
	ledger.addItem(models.Product{ID: 1, Name: "Hat", Price: 10.00, Stock: 1})
	id := ledger.addToCart("a@x.com", 1)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- w.ConfirmItem(context.Background(), id)
		}()
	}
	wg.Wait()
	close(results)

	var wins, losses int
	for err := range results {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, repository.ErrNotFound)
			losses++
		}
	}

	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)
	assert.Len(t, notifier.all(), 1)
}

func TestSubmitCartEmpty(t *testing.T) {
	ledger, notifier, w := setup()
	ledger.addUser(models.User{Email: "a@x.com"})

	_, err := w.SubmitCart(context.Background(), "a@x.com")

	assert.ErrorIs(t, err, repository.ErrEmptyCart)
	assert.Empty(t, notifier.all())
}

func TestSubmitCartAllOrNothing(t *testing.T) {
	ledger, notifier, w := setup()
	ledger.addUser(models.User{Email: "a@x.com"})
	ledger.addItem(models.Product{ID: 1, Name: "P1", Price: 5.00, Stock: 2})
	ledger.addItem(models.Product{ID: 2, Name: "P2", Price: 3.00, Stock: 5})

	var p1Lines []int64
	for i := 0; i < 3; i++ {
		p1Lines = append(p1Lines, ledger.addToCart("a@x.com", 1))
	}
	p2Line := ledger.addToCart("a@x.com", 2)

	_, err := w.SubmitCart(context.Background(), "a@x.com")

	require.ErrorIs(t, err, repository.ErrInsufficientStock)
	assert.Contains(t, err.Error(), "P1")
	assert.Contains(t, err.Error(), "requested 3")
	assert.Contains(t, err.Error(), "available 2")

	// No partial commit: every line is still in the cart.
	for _, id := range p1Lines {
		assert.Equal(t, models.StatusInCart, ledger.status(id))
	}
	assert.Equal(t, models.StatusInCart, ledger.status(p2Line))
	assert.Empty(t, notifier.all())
}

func TestSubmitCartCountsWaitingReservations(t *testing.T) {
	ledger, _, w := setup()
	ledger.addUser(models.User{Email: "a@x.com"})
	ledger.addUser(models.User{Email: "b@x.com"})
	ledger.addItem(models.Product{ID: 1, Name: "Hat", Price: 10.00, Stock: 2})

	// Another user already holds one unit in waiting.
	other := ledger.addToCart("b@x.com", 1)
	require.NoError(t, w.ConfirmItem(context.Background(), other))

	ledger.addToCart("a@x.com", 1)
	ledger.addToCart("a@x.com", 1)

	_, err := w.SubmitCart(context.Background(), "a@x.com")

	require.ErrorIs(t, err, repository.ErrInsufficientStock)
	assert.Contains(t, err.Error(), "available 1")
}

func TestSubmitCartAggregatesAndNotifiesOnce(t *testing.T) {
	ledger, notifier, w := setup()
	ledger.addUser(models.User{Email: "a@x.com", Name: "Alice"})
	ledger.addItem(models.Product{ID: 1, Name: "Hat", Price: 10.00, Stock: 5})
	ledger.addItem(models.Product{ID: 2, Name: "Scarf", Price: 7.50, Stock: 5})

	ids := []int64{
		ledger.addToCart("a@x.com", 1),
		ledger.addToCart("a@x.com", 1),
		ledger.addToCart("a@x.com", 2),
	}

	orderID, err := w.SubmitCart(context.Background(), "a@x.com")

	require.NoError(t, err)
	assert.Positive(t, orderID)
	for _, id := range ids {
		assert.Equal(t, models.StatusWaiting, ledger.status(id))
	}

	events := notifier.all()
	require.Len(t, events, 1)
	assert.InDelta(t, 27.50, events[0].Total, 1e-9)
	assert.Len(t, events[0].Items, 2)
}

func TestSubmitCartConcurrentDuplicate(t *testing.T) {
	ledger, notifier, w := setup()
	ledger.addUser(models.User{Email: "a@x.com", Name: "Alice"})
	ledger.addItem(models.Product{ID: 1, Name: "Hat", Price: 10.00, Stock: 5})
	ledger.addToCart("a@x.com", 1)
	ledger.addToCart("a@x.com", 1)

	// Hold both submits after their read phase so each has aggregated the
	// same cart before either flips it.
	var arrived sync.WaitGroup
	arrived.Add(2)
	release := make(chan struct{})
	ledger.beforeFlip = func() {
		arrived.Done()
		<-release
	}
	go func() {
		arrived.Wait()
		close(release)
	}()

	type result struct {
		orderID int64
		err     error
	}
	results := make(chan result, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := w.SubmitCart(context.Background(), "a@x.com")
			results <- result{orderID: id, err: err}
		}()
	}
	wg.Wait()
	close(results)

	var wins, losses int
	for res := range results {
		if res.err == nil {
			wins++
			assert.Positive(t, res.orderID)
		} else {
			assert.ErrorIs(t, res.err, repository.ErrNotFound)
			losses++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)

	// One order, one notification: the loser must not leave a phantom
	// duplicate behind.
	views, err := ledger.GetAllOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, views, 1)
	assert.Len(t, notifier.all(), 1)
}

func TestApproveItemDecrementsStock(t *testing.T) {
	ledger, _, w := setup()
	ledger.addUser(models.User{Email: "a@x.com"})
	ledger.addItem(models.Product{ID: 1, Name: "Hat", Price: 10.00, Stock: 1})
	id := ledger.addToCart("a@x.com", 1)
	require.NoError(t, w.ConfirmItem(context.Background(), id))

	require.NoError(t, w.ApproveItem(context.Background(), id))

	assert.Equal(t, models.StatusOrdered, ledger.status(id))
	assert.Equal(t, 0, ledger.stock(1))
}

func TestApproveItemLastUnit(t *testing.T) {
	ledger, _, w := setup()
	ledger.addUser(models.User{Email: "a@x.com"})
	ledger.addItem(models.Product{ID: 1, Name: "Hat", Price: 10.00, Stock: 1})
	first := ledger.addToCart("a@x.com", 1)
	second := ledger.addToCart("a@x.com", 1)
	require.NoError(t, w.ConfirmItem(context.Background(), first))
	require.NoError(t, w.ConfirmItem(context.Background(), second))

	require.NoError(t, w.ApproveItem(context.Background(), first))
	err := w.ApproveItem(context.Background(), second)

	assert.ErrorIs(t, err, repository.ErrOutOfStock)
	assert.Equal(t, models.StatusWaiting, ledger.status(second))
}

func TestApproveItemRequiresWaiting(t *testing.T) {
	ledger, _, w := setup()
	ledger.addUser(models.User{Email: "a@x.com"})
	ledger.addItem(models.Product{ID: 1, Name: "Hat", Price: 10.00, Stock: 1})
	id := ledger.addToCart("a@x.com", 1)

	// Still in_cart: the admin cannot approve it.
	err := w.ApproveItem(context.Background(), id)

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCancelIdempotence(t *testing.T) {
	ledger, notifier, w := setup()
	ledger.addUser(models.User{Email: "a@x.com"})
	ledger.addItem(models.Product{ID: 1, Name: "Hat", Price: 10.00, Stock: 1})
	id := ledger.addToCart("a@x.com", 1)
	require.NoError(t, w.ConfirmItem(context.Background(), id))

	require.NoError(t, w.CancelItem(context.Background(), id, "a@x.com"))
	err := w.CancelItem(context.Background(), id, "a@x.com")

	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, models.StatusCancelled, ledger.status(id))

	events := notifier.all()
	require.Len(t, events, 2) // confirm + one cancel
	assert.True(t, events[1].Cancelled)
}

func TestCancelWrongOwner(t *testing.T) {
	ledger, _, w := setup()
	ledger.addUser(models.User{Email: "a@x.com"})
	ledger.addUser(models.User{Email: "b@x.com"})
	ledger.addItem(models.Product{ID: 1, Name: "Hat", Price: 10.00, Stock: 1})
	id := ledger.addToCart("a@x.com", 1)
	require.NoError(t, w.ConfirmItem(context.Background(), id))

	err := w.CancelItem(context.Background(), id, "b@x.com")

	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, models.StatusWaiting, ledger.status(id))
}

func TestHatScenario(t *testing.T) {
	ledger, notifier, w := setup()
	ledger.addUser(models.User{Email: "a@x.com", Name: "Alice", Contact: "+371", City: "Riga", Address: "Street 1"})
	ledger.addItem(models.Product{ID: 1, Name: "Hat", Price: 10.00, Stock: 1})

	id := ledger.addToCart("a@x.com", 1)
	assert.Equal(t, models.StatusInCart, ledger.status(id))

	require.NoError(t, w.ConfirmItem(context.Background(), id))
	assert.Equal(t, models.StatusWaiting, ledger.status(id))

	events := notifier.all()
	require.Len(t, events, 1)
	assert.InDelta(t, 10.00, events[0].Total, 1e-9)

	require.NoError(t, w.ApproveItem(context.Background(), id))
	assert.Equal(t, models.StatusOrdered, ledger.status(id))
	assert.Equal(t, 0, ledger.stock(1))
}
