package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/example/icecreamshop/pkg/config"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

type ServiceDiscovery struct {
	client *clientv3.Client
	config *config.EtcdConfig
	logger *zap.Logger

	mu     sync.Mutex
	leases map[string]clientv3.LeaseID
}

// ServiceInstance is the value stored under the instance key.
type ServiceInstance struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	HTTPPort int    `json:"http_port"`
	GRPCPort int    `json:"grpc_port"`
}

func NewServiceDiscovery(cfg *config.EtcdConfig, logger *zap.Logger) (*ServiceDiscovery, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	return &ServiceDiscovery{
		client: cli,
		config: cfg,
		logger: logger,
		leases: make(map[string]clientv3.LeaseID),
	}, nil
}

func (sd *ServiceDiscovery) key(instance *ServiceInstance) string {
	return InstanceKey(sd.config.Prefix, instance)
}

// InstanceKey builds <prefix><name>/<host>:<http port>.
func InstanceKey(prefix string, instance *ServiceInstance) string {
	return fmt.Sprintf("%s%s/%s:%d", prefix, instance.Name, instance.Host, instance.HTTPPort)
}

// Register puts the instance under a lease kept alive until ctx is done
// or Deregister revokes it.
func (sd *ServiceDiscovery) Register(ctx context.Context, instance *ServiceInstance) error {
	value, err := json.Marshal(instance)
	if err != nil {
		return fmt.Errorf("failed to encode instance: %w", err)
	}

	lease, err := sd.client.Grant(ctx, sd.config.LeaseTTL)
	if err != nil {
		return fmt.Errorf("failed to create lease: %w", err)
	}

	key := sd.key(instance)
	_, err = sd.client.Put(ctx, key, string(value), clientv3.WithLease(lease.ID))
	if err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	ch, kaerr := sd.client.KeepAlive(ctx, lease.ID)
	if kaerr != nil {
		return fmt.Errorf("failed to keep alive: %w", kaerr)
	}

	sd.mu.Lock()
	sd.leases[key] = lease.ID
	sd.mu.Unlock()

	go func() {
		for range ch {
		}
		sd.logger.Info("Service lease keep-alive ended", zap.String("key", key))
	}()

	sd.logger.Info("Service registered", zap.String("key", key), zap.Int64("ttl", sd.config.LeaseTTL))
	return nil
}

func (sd *ServiceDiscovery) Deregister(ctx context.Context, instance *ServiceInstance) error {
	key := sd.key(instance)

	sd.mu.Lock()
	leaseID, ok := sd.leases[key]
	delete(sd.leases, key)
	sd.mu.Unlock()

	if ok {
		if _, err := sd.client.Revoke(ctx, leaseID); err != nil {
			return fmt.Errorf("failed to revoke lease: %w", err)
		}
		return nil
	}

	if _, err := sd.client.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to deregister service: %w", err)
	}
	return nil
}

func (sd *ServiceDiscovery) Close() error {
	return sd.client.Close()
}
