package etcd

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"docprobe/application/ports"
	"docprobe/domain/core/entities"
	"docprobe/domain/core/valueobjects"
	pkgerrors "docprobe/pkg/errors"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

var (
	_ ports.DocumentStore = (*DocumentStore)(nil)
	_ ports.HealthChecker = (*DocumentStore)(nil)
)

const leaseRevokeTimeout = 5 * time.Second

// record is the JSON value stored under a document key
type record struct {
	PartitionKey string `json:"partitionKey"`
	ID           string `json:"id"`
	TTLSeconds   *int   `json:"ttlSeconds,omitempty"`
	WrittenAt    string `json:"writtenAt"`
}

// DocumentStore keeps documents as etcd keys under /<database>/<collection>/.
// The version token is the key's ModRevision; TTLs are etcd leases, so
// expired documents disappear from the keyspace on their own.
type DocumentStore struct {
	kv     clientv3.KV
	lease  clientv3.Lease
	client *clientv3.Client
	root   string
	logger *zap.Logger
	now    func() time.Time
}

// NewDocumentStore creates an etcd-backed document store. The store owns the
// client and closes it on Close.
func NewDocumentStore(client *clientv3.Client, databaseName, collectionName string, logger *zap.Logger) *DocumentStore {
	s := newDocumentStore(client.KV, client.Lease, databaseName, collectionName, logger)
	s.client = client
	return s
}

func newDocumentStore(kv clientv3.KV, lease clientv3.Lease, databaseName, collectionName string, logger *zap.Logger) *DocumentStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	root := "/" + url.PathEscape(databaseName) + "/" + url.PathEscape(collectionName) + "/"
	return &DocumentStore{
		kv:     kv,
		lease:  lease,
		root:   root,
		logger: logger.Named("etcd").With(zap.String("root", root)),
		now:    time.Now,
	}
}

// keyFor escapes each component so that '/' inside a key cannot collide
// with the separator.
func (s *DocumentStore) keyFor(key valueobjects.DocumentKey) string {
	return s.root + url.PathEscape(key.PartitionKey) + "/" + url.PathEscape(key.ID)
}

// Write dispatches on the request's precondition
func (s *DocumentStore) Write(ctx context.Context, req entities.WriteRequest) (*entities.Document, error) {
	if req.Document == nil {
		return nil, pkgerrors.NewValidationError("document is required")
	}
	if req.Precondition.IsMustNotExist() {
		return s.create(ctx, req.Document)
	}
	return s.replace(ctx, req.Document, req.Precondition.Token())
}

func (s *DocumentStore) create(ctx context.Context, doc *entities.Document) (*entities.Document, error) {
	key := s.keyFor(doc.Key())
	value, err := s.encode(doc)
	if err != nil {
		return nil, err
	}

	opts, leaseID, err := s.leaseFor(ctx, doc)
	if err != nil {
		return nil, translateError("Grant", key, err)
	}

	// Version 0 means the key does not exist.
	resp, err := s.kv.Txn(ctx).If(
		clientv3.Compare(clientv3.Version(key), "=", 0),
	).Then(
		clientv3.OpPut(key, value, opts...),
	).Commit()
	if err != nil {
		s.revoke(leaseID)
		return nil, translateError("Txn", key, err)
	}

	if !resp.Succeeded {
		s.revoke(leaseID)
		s.logger.Debug("Create transaction failed due to key already existing", zap.String("key", key))
		return nil, pkgerrors.NewConflictError("document already exists").
			WithOperation("Txn").
			WithResource(doc.Key().String())
	}

	return doc.WithVersion(strconv.FormatInt(resp.Header.Revision, 10)), nil
}

func (s *DocumentStore) replace(ctx context.Context, doc *entities.Document, token string) (*entities.Document, error) {
	key := s.keyFor(doc.Key())
	rev, err := strconv.ParseInt(token, 10, 64)
	if err != nil || rev <= 0 {
		// No revision this store issued looks like that, so it cannot match.
		return nil, pkgerrors.NewConflictError("version token does not match").
			WithCode(pkgerrors.CodeVersionMismatch).
			WithOperation("Txn").
			WithResource(doc.Key().String())
	}

	value, err := s.encode(doc)
	if err != nil {
		return nil, err
	}

	opts, leaseID, err := s.leaseFor(ctx, doc)
	if err != nil {
		return nil, translateError("Grant", key, err)
	}

	resp, err := s.kv.Txn(ctx).If(
		clientv3.Compare(clientv3.ModRevision(key), "=", rev),
	).Then(
		clientv3.OpPut(key, value, opts...),
	).Else(
		clientv3.OpGet(key),
	).Commit()
	if err != nil {
		s.revoke(leaseID)
		return nil, translateError("Txn", key, err)
	}

	if !resp.Succeeded {
		s.revoke(leaseID)
		if len(resp.Responses) > 0 {
			if rng := resp.Responses[0].GetResponseRange(); rng != nil && len(rng.Kvs) > 0 {
				return nil, pkgerrors.NewConflictError("version token does not match").
					WithCode(pkgerrors.CodeVersionMismatch).
					WithOperation("Txn").
					WithResource(doc.Key().String()).
					WithDetails(map[string]interface{}{"currentVersion": strconv.FormatInt(rng.Kvs[0].ModRevision, 10)})
			}
		}
		return nil, pkgerrors.NewNotFoundError("document").WithOperation("Txn")
	}

	return doc.WithVersion(strconv.FormatInt(resp.Header.Revision, 10)), nil
}

// Read returns the document at key with its ModRevision as version token
func (s *DocumentStore) Read(ctx context.Context, key valueobjects.DocumentKey) (*entities.Document, error) {
	etcdKey := s.keyFor(key)
	resp, err := s.kv.Get(ctx, etcdKey)
	if err != nil {
		return nil, translateError("Get", etcdKey, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, pkgerrors.NewNotFoundError("document").WithOperation("Get")
	}

	kv := resp.Kvs[0]
	var rec record
	if err := json.Unmarshal(kv.Value, &rec); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to decode document %s", etcdKey)
	}

	return &entities.Document{
		PartitionKey:      rec.PartitionKey,
		ID:                rec.ID,
		VersionToken:      strconv.FormatInt(kv.ModRevision, 10),
		TimeToLiveSeconds: rec.TTLSeconds,
	}, nil
}

// Ping issues a count-only range read over the collection prefix
func (s *DocumentStore) Ping(ctx context.Context) error {
	if _, err := s.kv.Get(ctx, s.root, clientv3.WithPrefix(), clientv3.WithCountOnly()); err != nil {
		return translateError("Get", s.root, err)
	}
	return nil
}

// Close closes the underlying client when the store owns one
func (s *DocumentStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *DocumentStore) encode(doc *entities.Document) (string, error) {
	b, err := json.Marshal(record{
		PartitionKey: doc.PartitionKey,
		ID:           doc.ID,
		TTLSeconds:   doc.TimeToLiveSeconds,
		WrittenAt:    s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", pkgerrors.NewInternalError("failed to encode document").WithCause(err)
	}
	return string(b), nil
}

// leaseFor grants a lease for documents with a TTL
func (s *DocumentStore) leaseFor(ctx context.Context, doc *entities.Document) ([]clientv3.OpOption, clientv3.LeaseID, error) {
	if doc.TimeToLiveSeconds == nil {
		return nil, clientv3.NoLease, nil
	}
	grant, err := s.lease.Grant(ctx, int64(*doc.TimeToLiveSeconds))
	if err != nil {
		return nil, clientv3.NoLease, err
	}
	return []clientv3.OpOption{clientv3.WithLease(grant.ID)}, grant.ID, nil
}

// revoke drops a lease that ended up unused. Failure only delays cleanup
// until the lease expires.
func (s *DocumentStore) revoke(id clientv3.LeaseID) {
	if id == clientv3.NoLease {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), leaseRevokeTimeout)
	defer cancel()
	if _, err := s.lease.Revoke(ctx, id); err != nil {
		s.logger.Warn("Failed to revoke unused lease", zap.Int64("lease", int64(id)), zap.Error(err))
	}
}
