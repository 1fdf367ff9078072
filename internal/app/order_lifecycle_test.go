package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/shopdesk/internal/auth"
	"github.com/vladislavdragonenkov/shopdesk/internal/domain"
	"github.com/vladislavdragonenkov/shopdesk/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shopdesk/internal/metrics"
	"github.com/vladislavdragonenkov/shopdesk/internal/service/orders"
	"github.com/vladislavdragonenkov/shopdesk/internal/service/outbox"
	"github.com/vladislavdragonenkov/shopdesk/internal/service/rest"
)

// OrderLifecycleTestSuite прогоняет заказ через REST API, outbox и Kafka-публикацию.
type OrderLifecycleTestSuite struct {
	suite.Suite

	deps     *runtimeDependencies
	server   *httptest.Server
	verifier *auth.Verifier
	worker   *outbox.Worker
	producer *mocks.SyncProducer

	mu        sync.Mutex
	published []string
}

func (s *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel)
	logger := baseLogger.WithField("component", "lifecycle-test")

	cfg := validConfig()
	cfg.ReserveStock = true

	deps, err := initRuntimeDependencies(context.Background(), cfg, logger)
	s.Require().NoError(err)
	s.deps = deps

	s.verifier, err = auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	s.Require().NoError(err)

	svc := orders.NewService(deps.repo, deps.catalog,
		orders.WithLogger(logger),
		orders.WithMetrics(metrics.NewOrderMetricsWithRegisterer(prometheus.NewRegistry())),
		orders.WithStockReservation(cfg.ReserveStock),
	)
	s.server = httptest.NewServer(rest.NewRouter(rest.Config{
		Orders:      svc,
		Verifier:    s.verifier,
		Idempotency: deps.idempotencyRepo,
		Logger:      logger,
	}))

	s.published = nil
	s.producer = mocks.NewSyncProducer(s.T(), nil)
	publisher := kafka.NewOutboxPublisher(kafka.NewProducerFromSync(s.producer), cfg.KafkaTopic, cfg.KafkaDLQTopic)
	s.worker = outbox.NewWorker(deps.outboxRepo, publisher, outbox.Config{}, outbox.WithLogger(logger))
}

func (s *OrderLifecycleTestSuite) TearDownTest() {
	s.server.Close()
	s.Require().NoError(s.producer.Close())
	s.Require().NoError(s.deps.close())
}

func (s *OrderLifecycleTestSuite) expectPublish(times int) {
	for i := 0; i < times; i++ {
		s.producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
			for _, h := range msg.Headers {
				if string(h.Key) == kafka.HeaderEventType {
					s.mu.Lock()
					s.published = append(s.published, string(h.Value))
					s.mu.Unlock()
				}
			}
			return nil
		})
	}
}

func (s *OrderLifecycleTestSuite) call(method, path string, identity domain.Identity, body any) (int, []byte) {
	token, err := s.verifier.Issue(identity, time.Minute)
	s.Require().NoError(err)

	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, s.server.URL+path, payload)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp.StatusCode, out
}

func (s *OrderLifecycleTestSuite) TestOrderLifecycle() {
	jane := domain.Identity{UserID: 2, Role: domain.RoleUser}
	admin := domain.Identity{UserID: 1, Role: domain.RoleAdmin}

	code, body := s.call(http.MethodPost, "/orders", jane, map[string]any{
		"items": []map[string]any{
			{"productId": 1, "quantity": 1},
			{"productId": 2, "quantity": 2},
		},
	})
	s.Require().Equal(http.StatusCreated, code, string(body))

	var created struct {
		OrderID int64 `json:"orderId"`
	}
	s.Require().NoError(json.Unmarshal(body, &created))

	code, body = s.call(http.MethodGet, fmt.Sprintf("/orders/%d", created.OrderID), jane, nil)
	s.Require().Equal(http.StatusOK, code)
	var view struct {
		Total float64 `json:"total"`
	}
	s.Require().NoError(json.Unmarshal(body, &view))
	s.Require().InDelta(228.99, view.Total, 1e-9)

	code, _ = s.call(http.MethodPatch, fmt.Sprintf("/orders/%d/status", created.OrderID), admin, map[string]string{"status": "SHIPPED"})
	s.Require().Equal(http.StatusOK, code)

	product, err := s.deps.catalog.GetProduct(context.Background(), 2)
	s.Require().NoError(err)
	s.Require().Equal(38, product.Stock)

	s.expectPublish(2)
	s.worker.ProcessOnce(context.Background())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Require().Equal([]string{domain.EventTypeOrderCreated, domain.EventTypeOrderStatusChanged}, s.published)

	stats, err := s.deps.outboxRepo.Stats(context.Background())
	s.Require().NoError(err)
	s.Require().Zero(stats.PendingCount)
}

func (s *OrderLifecycleTestSuite) TestRejectedOrderLeavesNoTrace() {
	jane := domain.Identity{UserID: 2, Role: domain.RoleUser}

	code, body := s.call(http.MethodPost, "/orders", jane, map[string]any{
		"items": []map[string]any{
			{"productId": 3, "quantity": 2},
			{"productId": 3, "quantity": 4},
		},
	})
	s.Require().Equal(http.StatusBadRequest, code, string(body))

	code, body = s.call(http.MethodGet, "/orders", jane, nil)
	s.Require().Equal(http.StatusOK, code)
	var list struct {
		Count int `json:"count"`
	}
	s.Require().NoError(json.Unmarshal(body, &list))
	s.Require().Zero(list.Count)

	product, err := s.deps.catalog.GetProduct(context.Background(), 3)
	s.Require().NoError(err)
	s.Require().Equal(5, product.Stock)

	stats, err := s.deps.outboxRepo.Stats(context.Background())
	s.Require().NoError(err)
	s.Require().Zero(stats.PendingCount)
}

func TestOrderLifecycleTestSuite(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}
