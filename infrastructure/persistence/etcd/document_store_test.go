package etcd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"docprobe/domain/core/entities"
	"docprobe/domain/core/valueobjects"
	pkgerrors "docprobe/pkg/errors"

	pb "go.etcd.io/etcd/api/v3/etcdserverpb"
	"go.etcd.io/etcd/api/v3/mvccpb"
	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	clientv3 "go.etcd.io/etcd/client/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// fakeKV implements the subset of clientv3.KV the store uses, with real
// version/ModRevision bookkeeping.
type fakeKV struct {
	clientv3.KV

	mu   sync.Mutex
	rev  int64
	data map[string]*mvccpb.KeyValue
	err  error
}

func newFakeKV() *fakeKV {
	return &fakeKV{rev: 1, data: make(map[string]*mvccpb.KeyValue)}
}

func (f *fakeKV) Get(ctx context.Context, key string, _ ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	resp := &clientv3.GetResponse{Header: &pb.ResponseHeader{Revision: f.rev}}
	if kv, ok := f.data[key]; ok {
		resp.Kvs = []*mvccpb.KeyValue{kv}
		resp.Count = 1
	}
	return resp, nil
}

func (f *fakeKV) Txn(ctx context.Context) clientv3.Txn {
	return &fakeTxn{kv: f}
}

type fakeTxn struct {
	kv    *fakeKV
	cmps  []clientv3.Cmp
	thens []clientv3.Op
	elses []clientv3.Op
}

func (t *fakeTxn) If(cs ...clientv3.Cmp) clientv3.Txn   { t.cmps = cs; return t }
func (t *fakeTxn) Then(ops ...clientv3.Op) clientv3.Txn { t.thens = ops; return t }
func (t *fakeTxn) Else(ops ...clientv3.Op) clientv3.Txn { t.elses = ops; return t }

func (t *fakeTxn) Commit() (*clientv3.TxnResponse, error) {
	f := t.kv
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	ok := true
	for _, c := range t.cmps {
		ok = ok && f.holds(c)
	}
	ops := t.thens
	if !ok {
		ops = t.elses
	}

	resp := &clientv3.TxnResponse{Succeeded: ok}
	for _, op := range ops {
		key := string(op.KeyBytes())
		switch {
		case op.IsPut():
			f.rev++
			kv, exists := f.data[key]
			if !exists {
				kv = &mvccpb.KeyValue{Key: []byte(key), CreateRevision: f.rev}
				f.data[key] = kv
			}
			kv.Value = op.ValueBytes()
			kv.ModRevision = f.rev
			kv.Version++
			resp.Responses = append(resp.Responses, &pb.ResponseOp{
				Response: &pb.ResponseOp_ResponsePut{ResponsePut: &pb.PutResponse{}},
			})
		case op.IsGet():
			rng := &pb.RangeResponse{}
			if kv, exists := f.data[key]; exists {
				rng.Kvs = []*mvccpb.KeyValue{kv}
				rng.Count = 1
			}
			resp.Responses = append(resp.Responses, &pb.ResponseOp{
				Response: &pb.ResponseOp_ResponseRange{ResponseRange: rng},
			})
		}
	}
	resp.Header = &pb.ResponseHeader{Revision: f.rev}
	return resp, nil
}

func (f *fakeKV) holds(c clientv3.Cmp) bool {
	kv := f.data[string(c.Key)]
	var actual, want int64
	switch u := c.TargetUnion.(type) {
	case *pb.Compare_Version:
		want = u.Version
		if kv != nil {
			actual = kv.Version
		}
	case *pb.Compare_ModRevision:
		want = u.ModRevision
		if kv != nil {
			actual = kv.ModRevision
		}
	default:
		panic(fmt.Sprintf("unsupported compare target %v", c.Target))
	}
	return c.Result == pb.Compare_EQUAL && actual == want
}

type fakeLease struct {
	clientv3.Lease

	mu      sync.Mutex
	next    clientv3.LeaseID
	granted map[clientv3.LeaseID]int64
	revoked []clientv3.LeaseID
}

func newFakeLease() *fakeLease {
	return &fakeLease{next: 100, granted: make(map[clientv3.LeaseID]int64)}
}

func (l *fakeLease) Grant(ctx context.Context, ttl int64) (*clientv3.LeaseGrantResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	l.granted[l.next] = ttl
	return &clientv3.LeaseGrantResponse{ID: l.next, TTL: ttl}, nil
}

func (l *fakeLease) Revoke(ctx context.Context, id clientv3.LeaseID) (*clientv3.LeaseRevokeResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revoked = append(l.revoked, id)
	return &clientv3.LeaseRevokeResponse{}, nil
}

func newTestStore() (*DocumentStore, *fakeKV, *fakeLease) {
	kv, lease := newFakeKV(), newFakeLease()
	return newDocumentStore(kv, lease, "db", "common", zap.NewNop()), kv, lease
}

func createReq(pk, id string, ttl *int) entities.WriteRequest {
	return entities.NewCreateRequest(entities.NewDocument(valueobjects.NewDocumentKey(pk, id), ttl))
}

func TestKeyFor_EscapesSeparators(t *testing.T) {
	s, _, _ := newTestStore()

	a := s.keyFor(valueobjects.NewDocumentKey("a/b", "c"))
	b := s.keyFor(valueobjects.NewDocumentKey("a", "b/c"))

	assert.NotEqual(t, a, b)
	assert.Equal(t, "/db/common/a%2Fb/c", a)
}

func TestDocumentStore_CreateConflictRead(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore()

	created, err := s.Write(ctx, createReq("a", "b", nil))
	require.NoError(t, err)
	require.NotEmpty(t, created.VersionToken)

	_, err = s.Write(ctx, createReq("a", "b", nil))
	assert.True(t, pkgerrors.IsConflict(err))

	got, err := s.Read(ctx, valueobjects.NewDocumentKey("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, created.VersionToken, got.VersionToken)
	assert.Equal(t, "a", got.PartitionKey)
	assert.Equal(t, "b", got.ID)
}

func TestDocumentStore_TTLUsesLease(t *testing.T) {
	ctx := context.Background()
	s, _, lease := newTestStore()
	ttl := 500

	doc, err := s.Write(ctx, createReq("a", "b", &ttl))
	require.NoError(t, err)
	assert.Equal(t, 500, *doc.TimeToLiveSeconds)
	assert.Len(t, lease.granted, 1)
	assert.Empty(t, lease.revoked)

	// the losing create must not leak its lease
	_, err = s.Write(ctx, createReq("a", "b", &ttl))
	require.Error(t, err)
	assert.Len(t, lease.granted, 2)
	assert.Len(t, lease.revoked, 1)
}

func TestDocumentStore_Replace(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore()

	created, err := s.Write(ctx, createReq("a", "b", nil))
	require.NoError(t, err)

	req, err := entities.NewReplaceRequest(created)
	require.NoError(t, err)
	replaced, err := s.Write(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, created.VersionToken, replaced.VersionToken)

	stale, err := entities.NewReplaceRequest(created)
	require.NoError(t, err)
	_, err = s.Write(ctx, stale)
	assert.ErrorIs(t, err, &pkgerrors.AppError{Type: pkgerrors.ErrorTypeConflict, Code: pkgerrors.CodeVersionMismatch})

	missing, err := entities.NewReplaceRequest(&entities.Document{PartitionKey: "x", ID: "y", VersionToken: "7"})
	require.NoError(t, err)
	_, err = s.Write(ctx, missing)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestDocumentStore_ForeignTokenIsVersionMismatch(t *testing.T) {
	ctx := context.Background()
	s, _, lease := newTestStore()

	created, err := s.Write(ctx, createReq("a", "b", nil))
	require.NoError(t, err)

	for _, token := range []string{"not-a-revision", "0", "-3", "1.5"} {
		t.Run(token, func(t *testing.T) {
			ttl := 60
			req, err := entities.NewReplaceRequest(&entities.Document{PartitionKey: "a", ID: "b", VersionToken: token, TimeToLiveSeconds: &ttl})
			require.NoError(t, err)

			_, err = s.Write(ctx, req)
			assert.ErrorIs(t, err, &pkgerrors.AppError{Type: pkgerrors.ErrorTypeConflict, Code: pkgerrors.CodeVersionMismatch})
			assert.False(t, pkgerrors.IsRetryable(err))
		})
	}
	assert.Empty(t, lease.granted)

	got, err := s.Read(ctx, valueobjects.NewDocumentKey("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, created.VersionToken, got.VersionToken)
}

func TestDocumentStore_ReadNotFound(t *testing.T) {
	s, _, _ := newTestStore()
	_, err := s.Read(context.Background(), valueobjects.NewDocumentKey("a", "b"))
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestDocumentStore_VersionIsModRevision(t *testing.T) {
	ctx := context.Background()
	s, kv, _ := newTestStore()

	created, err := s.Write(ctx, createReq("a", "b", nil))
	require.NoError(t, err)

	stored := kv.data[s.keyFor(created.Key())]
	require.NotNil(t, stored)
	assert.Equal(t, strconv.FormatInt(stored.ModRevision, 10), created.VersionToken)
}

func TestDocumentStore_PropagatesTypedErrors(t *testing.T) {
	s, kv, _ := newTestStore()
	kv.err = rpctypes.ErrPermissionDenied

	_, err := s.Write(context.Background(), createReq("a", "b", nil))
	assert.True(t, pkgerrors.IsAuth(err))

	kv.err = nil
	assert.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, s.Close())
}

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want pkgerrors.ErrorType
	}{
		{"permission denied", rpctypes.ErrPermissionDenied, pkgerrors.ErrorTypeAuth},
		{"auth failed", rpctypes.ErrAuthFailed, pkgerrors.ErrorTypeAuth},
		{"invalid token", rpctypes.ErrInvalidAuthToken, pkgerrors.ErrorTypeAuth},
		{"unauthenticated status", status.Error(codes.Unauthenticated, "no"), pkgerrors.ErrorTypeAuth},
		{"no leader", rpctypes.ErrNoLeader, pkgerrors.ErrorTypeTransient},
		{"unavailable", status.Error(codes.Unavailable, "down"), pkgerrors.ErrorTypeTransient},
		{"exhausted", status.Error(codes.ResourceExhausted, "busy"), pkgerrors.ErrorTypeTransient},
		{"too large", rpctypes.ErrRequestTooLarge, pkgerrors.ErrorTypeValidation},
		{"context", fmt.Errorf("txn: %w", context.DeadlineExceeded), pkgerrors.ErrorTypeCancelled},
		{"grpc cancel", status.Error(codes.Canceled, "cancelled"), pkgerrors.ErrorTypeCancelled},
		{"transport", errors.New("connection refused"), pkgerrors.ErrorTypeTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pkgerrors.TypeOf(translateError("Txn", "/k", tt.err)))
		})
	}
}
