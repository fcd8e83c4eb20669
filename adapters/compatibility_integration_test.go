package adapters_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/goliatone/go-command"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-processes/adapters/amqp"
	"github.com/goliatone/go-processes/adapters/gocommand"
	"github.com/goliatone/go-processes/adapters/gojob"
	"github.com/goliatone/go-processes/adapters/gologger"
	processcommand "github.com/goliatone/go-processes/command"
	"github.com/goliatone/go-processes/core"
	amqp091 "github.com/rabbitmq/amqp091-go"
)

func TestRuntimeCompatibility_GoJobGoCommandGoLoggerAMQP(t *testing.T) {
	ctx := context.Background()

	logger := &compatLogger{}
	provider := &compatProvider{logger: logger}
	_, _, jobProvider, jobLogger := gologger.ResolveForJob(gologger.RootName, provider, nil)
	if jobProvider == nil || jobLogger == nil {
		t.Fatalf("expected go-job logger bridges")
	}

	channel := &compatChannel{}
	publisher, err := amqp.NewResultPublisher(channel, amqp.WithProducer("compat"))
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	process := &compatProcess{}
	dispatcher, err := core.NewDispatcher(core.DefaultConfig(),
		core.WithLoggerProvider(provider),
		core.WithProcessProviders(process),
		core.WithResultPublisher(publisher),
	)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	// Scheduler path: go-job message -> worker -> dispatcher -> amqp event.
	msg, err := gojob.NewRunProcessMessage(7, core.ProcessParameter{CallerID: "user-1", TriggeredBy: "scheduler"}, "idem-1")
	if err != nil {
		t.Fatalf("new job message: %v", err)
	}
	delivery := &compatDelivery{msg: msg}
	worker := gojob.NewWorker(dispatcher, gojob.WithLoggerProvider(provider))
	if err := worker.Handle(ctx, delivery, 1); err != nil {
		t.Fatalf("handle delivery: %v", err)
	}
	if !delivery.acked {
		t.Fatalf("expected successful run to be acked")
	}
	if process.calls != 1 {
		t.Fatalf("expected one provider invocation, got %d", process.calls)
	}
	if len(channel.published) != 1 || channel.published[0].CorrelationId != "user-1" {
		t.Fatalf("expected one completion event correlated to the caller, got %#v", channel.published)
	}

	// Command path: go-command dispatch -> same dispatcher.
	adapter := gocommand.NewRegistryAdapter(command.NewRegistry())
	subs, err := gocommand.RegisterProcessHandlers(adapter, gocommand.Handlers{Dispatcher: dispatcher})
	if err != nil {
		t.Fatalf("register process handlers: %v", err)
	}
	defer subs.Unsubscribe()
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	collector := command.NewResult[core.ProcessResult]()
	if err := gocommand.Dispatch(command.ContextWithResult(ctx, collector), processcommand.RunProcessMessage{ProcessID: 7}); err != nil {
		t.Fatalf("dispatch run process: %v", err)
	}
	result, ok := collector.Load()
	if !ok || result.Status != core.ProcessStatusSuccessful || result.ProcessID != 7 {
		t.Fatalf("unexpected command result %#v", result)
	}
	if process.calls != 2 || len(channel.published) != 2 {
		t.Fatalf("expected both surfaces to reach the dispatcher, calls=%d events=%d", process.calls, len(channel.published))
	}

	var env amqp.Envelope
	if err := json.Unmarshal(channel.published[1].Body, &env); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if env.Data.Result.ProcessID != 7 || env.Data.ProcessName != "compat-process" {
		t.Fatalf("unexpected event data %#v", env.Data)
	}

	if len(provider.names) == 0 {
		t.Fatalf("expected named loggers to be requested from the provider")
	}
}

type compatProcess struct {
	calls int
}

func (p *compatProcess) ID() int { return 7 }

func (p *compatProcess) Name() string { return "compat-process" }

func (p *compatProcess) Run(context.Context, core.ProcessParameter) core.ProcessResult {
	p.calls++
	return core.NewSuccessfulResult(7, 1, 1, "compat: 1 record processed")
}

type compatChannel struct {
	published []amqp091.Publishing
}

func (c *compatChannel) PublishWithContext(_ context.Context, _ string, _ string, _ bool, _ bool, msg amqp091.Publishing) error {
	c.published = append(c.published, msg)
	return nil
}

type compatDelivery struct {
	msg    *job.ExecutionMessage
	acked  bool
	nacked bool
}

func (d *compatDelivery) Message() *job.ExecutionMessage { return d.msg }

func (d *compatDelivery) Ack(context.Context) error {
	d.acked = true
	return nil
}

func (d *compatDelivery) Nack(context.Context, queue.NackOptions) error {
	d.nacked = true
	return nil
}

type compatLogger struct {
	entries int
}

func (l *compatLogger) Trace(string, ...any) { l.entries++ }
func (l *compatLogger) Debug(string, ...any) { l.entries++ }
func (l *compatLogger) Info(string, ...any)  { l.entries++ }
func (l *compatLogger) Warn(string, ...any)  { l.entries++ }
func (l *compatLogger) Error(string, ...any) { l.entries++ }
func (l *compatLogger) Fatal(string, ...any) { l.entries++ }

func (l *compatLogger) WithContext(context.Context) glog.Logger { return l }

type compatProvider struct {
	logger *compatLogger
	names  []string
}

func (p *compatProvider) GetLogger(name string) glog.Logger {
	p.names = append(p.names, name)
	return p.logger
}
