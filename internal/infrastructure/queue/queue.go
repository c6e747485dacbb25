// Package queue cola de trabajos programados por hora de ejecución. La entrega
// es al menos una vez: un trabajo reclamado y no confirmado vuelve a la cola.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	appsri "github.com/jhoicas/cobros-sri/internal/application/sri"
)

// DefaultKey sorted set de trabajos; el score es RunAt en milisegundos.
const DefaultKey = "sri:jobs:scheduled"

// DefaultVisibility tiempo que un trabajo reclamado queda reservado antes de
// volver a la cola si nadie lo confirma.
const DefaultVisibility = 5 * time.Minute

type options struct {
	visibility time.Duration
}

// Option ajusta una cola.
type Option func(*options)

// WithVisibility plazo para confirmar un trabajo reclamado. Debe superar el
// tope de ejecución del worker.
func WithVisibility(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.visibility = d
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{visibility: DefaultVisibility}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// claimScript en una sola operación devuelve a la cola los reservados vencidos
// y mueve hasta ARGV[2] trabajos vencidos a la reserva hasta ARGV[3]. Dos
// workers nunca reciben el mismo trabajo mientras la reserva esté vigente.
//
// KEYS[1] programados, KEYS[2] reservas (id → plazo), KEYS[3] cuerpos (id → json).
var claimScript = redis.NewScript(`
local expired = redis.call("ZRANGEBYSCORE", KEYS[2], "-inf", ARGV[1])
for _, id in ipairs(expired) do
	local payload = redis.call("HGET", KEYS[3], id)
	redis.call("ZREM", KEYS[2], id)
	redis.call("HDEL", KEYS[3], id)
	if payload then
		redis.call("ZADD", KEYS[1], ARGV[1], payload)
	end
end
local due = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, tonumber(ARGV[2]))
for _, payload in ipairs(due) do
	redis.call("ZREM", KEYS[1], payload)
	local ok, job = pcall(cjson.decode, payload)
	if ok and type(job) == "table" and job.id and job.id ~= "" then
		redis.call("ZADD", KEYS[2], ARGV[3], job.id)
		redis.call("HSET", KEYS[3], job.id, payload)
	end
end
return due
`)

// ackScript libera la reserva de un trabajo terminado.
var ackScript = redis.NewScript(`
redis.call("ZREM", KEYS[1], ARGV[1])
return redis.call("HDEL", KEYS[2], ARGV[1])
`)

// RedisQueue cola durable sobre un sorted set, con reserva de los trabajos
// reclamados hasta su confirmación.
type RedisQueue struct {
	client      *redis.Client
	key         string
	inflightKey string
	payloadKey  string
	opts        options
}

// NewRedisQueue crea la cola. key vacío usa DefaultKey.
func NewRedisQueue(client *redis.Client, key string, opts ...Option) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	return &RedisQueue{
		client:      client,
		key:         key,
		inflightKey: key + ":inflight",
		payloadKey:  key + ":inflight:payload",
		opts:        buildOptions(opts),
	}
}

// Enqueue agrega el trabajo con score = RunAt.
func (q *RedisQueue) Enqueue(ctx context.Context, job appsri.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: serializar trabajo: %w", err)
	}
	return q.client.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(job.RunAt.UnixMilli()),
		Member: payload,
	}).Err()
}

// Claim reserva hasta max trabajos cuyo RunAt ya pasó. Un trabajo sin Ack
// vuelve a la cola cuando vence su reserva.
func (q *RedisQueue) Claim(ctx context.Context, now time.Time, max int) ([]appsri.Job, error) {
	deadline := now.Add(q.opts.visibility)
	raw, err := claimScript.Run(ctx, q.client, []string{q.key, q.inflightKey, q.payloadKey},
		strconv.FormatInt(now.UnixMilli(), 10), max,
		strconv.FormatInt(deadline.UnixMilli(), 10)).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("queue: reclamar trabajos: %w", err)
	}
	jobs := make([]appsri.Job, 0, len(raw))
	for _, r := range raw {
		var job appsri.Job
		if err := json.Unmarshal([]byte(r), &job); err != nil {
			// Un miembro corrupto no debe bloquear el resto de la cola.
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Ack confirma que el trabajo terminó y libera su reserva.
func (q *RedisQueue) Ack(ctx context.Context, job appsri.Job) error {
	if err := ackScript.Run(ctx, q.client, []string{q.inflightKey, q.payloadKey}, job.ID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("queue: confirmar trabajo %s: %w", job.ID, err)
	}
	return nil
}

// InFlight trabajos reclamados sin confirmar.
func (q *RedisQueue) InFlight(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.inflightKey).Result()
}

// Len trabajos pendientes (vencidos o no).
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.key).Result()
}

type reservation struct {
	job      appsri.Job
	deadline time.Time
}

// MemoryQueue cola en memoria para desarrollo y tests.
type MemoryQueue struct {
	mu       sync.Mutex
	jobs     []appsri.Job
	inflight map[string]reservation
	opts     options
}

// NewMemoryQueue crea una cola vacía.
func NewMemoryQueue(opts ...Option) *MemoryQueue {
	return &MemoryQueue{inflight: map[string]reservation{}, opts: buildOptions(opts)}
}

// Enqueue agrega el trabajo.
func (q *MemoryQueue) Enqueue(_ context.Context, job appsri.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

// Claim reserva los trabajos vencidos más antiguos primero.
func (q *MemoryQueue) Claim(_ context.Context, now time.Time, max int) ([]appsri.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, r := range q.inflight {
		if !r.deadline.After(now) {
			q.jobs = append(q.jobs, r.job)
			delete(q.inflight, id)
		}
	}
	sort.SliceStable(q.jobs, func(i, j int) bool { return q.jobs[i].RunAt.Before(q.jobs[j].RunAt) })

	var due []appsri.Job
	rest := q.jobs[:0]
	for _, job := range q.jobs {
		if len(due) < max && !job.RunAt.After(now) {
			due = append(due, job)
			if job.ID != "" {
				q.inflight[job.ID] = reservation{job: job, deadline: now.Add(q.opts.visibility)}
			}
			continue
		}
		rest = append(rest, job)
	}
	q.jobs = rest
	return due, nil
}

// Ack libera la reserva del trabajo.
func (q *MemoryQueue) Ack(_ context.Context, job appsri.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inflight, job.ID)
	return nil
}

// InFlight trabajos reclamados sin confirmar.
func (q *MemoryQueue) InFlight(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.inflight)), nil
}

// Len trabajos pendientes.
func (q *MemoryQueue) Len(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.jobs)), nil
}

// Snapshot copia de los trabajos pendientes.
func (q *MemoryQueue) Snapshot() []appsri.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]appsri.Job(nil), q.jobs...)
}
