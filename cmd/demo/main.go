// Command demo walks the billing engine through the common purchase paths
// on in-memory stores with the noop gateway and a simulated clock.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"track-billing/internal/application"
	"track-billing/internal/config"
	"track-billing/internal/domain/model"
	"track-billing/internal/infra/adapters/audit"
	"track-billing/internal/infra/adapters/catalog"
	"track-billing/internal/infra/adapters/payment"
	"track-billing/internal/usecase"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type demo struct {
	ctx    context.Context
	clock  *clock
	gw     *payment.NoopPaymentGateway
	engine *application.Engine
}

// buy runs order, checkout callback and verification for one purchase.
func (d *demo) buy(userID string, tier model.Tier, track string) *model.Payment {
	req := usecase.OrderRequest{UserID: userID, Tier: tier, Purpose: model.PurposeTrackAccess}
	if track != "" {
		req.TrackID = &track
	}
	res, err := d.engine.Orders.CreateOrder(d.ctx, req)
	if err != nil {
		log.Fatalf("create order: %v", err)
	}
	payID := "pay_" + res.GatewayOrderID
	p, err := d.engine.Payments.Verify(d.ctx, usecase.VerifyRequest{
		UserID:           userID,
		GatewayOrderID:   res.GatewayOrderID,
		GatewayPaymentID: payID,
		Signature:        d.gw.Sign(res.GatewayOrderID, payID),
	})
	if err != nil {
		log.Fatalf("verify: %v", err)
	}
	log.Printf("%s paid %d %s for %q (order %s)", userID, p.Amount, res.Currency, track, res.GatewayOrderID)
	return p
}

func (d *demo) show(userID, track string) {
	s, err := d.engine.AccessSummary(d.ctx, userID, track)
	if err != nil {
		log.Fatalf("access: %v", err)
	}
	fmt.Print(s)
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(zerolog.WarnLevel).With().Timestamp().Logger()

	cfg, err := config.Parse([]byte("auth:\n  jwt_secret: demo\n"), true)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	d := &demo{
		ctx:   context.Background(),
		clock: &clock{t: time.Now().UTC().Truncate(time.Hour)},
		gw:    payment.NewNoopPaymentGateway(cfg.Payment.KeySecret),
	}
	d.engine = application.NewEngine(
		application.MemoryStores(catalog.Demo()),
		application.Deps{Gateway: d.gw, Audit: audit.NewLogSink(&logger), Clock: d.clock.Now},
		cfg,
		&logger,
	)

	fmt.Println("== 1. new purchase on a track")
	d.buy("alice", model.TierBasic, "go-backend")
	d.show("alice", "go-backend")

	fmt.Println("\n== 2. renewal before expiry keeps unlocking")
	d.clock.Advance(29 * 24 * time.Hour)
	d.buy("alice", model.TierBasic, "go-backend")
	d.clock.Advance(2 * 24 * time.Hour)
	d.show("alice", "go-backend")

	fmt.Println("\n== 3. track chosen after payment")
	p := d.buy("bob", model.TierPremium, "")
	d.show("bob", "data-science")
	if _, err := d.engine.Subscriptions.Link(d.ctx, "bob", p.ID, "data-science"); err != nil {
		log.Fatalf("link: %v", err)
	}
	d.show("bob", "data-science")

	fmt.Println("\n== 4. a second track stays independent")
	d.buy("alice", model.TierPremium, "data-science")
	d.show("alice", "go-backend")
	d.show("alice", "data-science")

	fmt.Println("\n== usage")
	report, _ := d.engine.Access.TrackAccess(d.ctx, "bob", "data-science")
	for i := 0; i < 11; i++ {
		n, err := d.engine.Usage.RecordUsage(d.ctx, report.SubscriptionID, "ds-python", model.UsageDaily)
		if err != nil {
			fmt.Printf("chat turn %d refused: %v\n", i+1, err)
			break
		}
		fmt.Printf("chat turn %d recorded (count %d)\n", i+1, n)
	}

	fmt.Println("\n== expiry")
	d.clock.Advance(model.DefaultPeriod + time.Hour)
	n, err := d.engine.Subscriptions.FinishExpired(d.ctx)
	if err != nil {
		log.Fatalf("expire: %v", err)
	}
	fmt.Printf("%d subscription(s) expired\n", n)
	d.show("bob", "data-science")
}
