package topology

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/samuel/go-zookeeper/zk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TeamTap/cruise-control/internal/slowbroker"
)

type fakeZKClient struct {
	children    map[string][]string
	data        map[string][]byte
	childrenErr error
}

func (f *fakeZKClient) Children(path string) ([]string, *zk.Stat, error) {
	if f.childrenErr != nil {
		return nil, nil, f.childrenErr
	}
	return f.children[path], nil, nil
}

func (f *fakeZKClient) Get(path string) ([]byte, *zk.Stat, error) {
	data, ok := f.data[path]
	if !ok {
		return nil, nil, fmt.Errorf("no such node: %s", path)
	}
	return data, nil, nil
}

func (f *fakeZKClient) Close() {}

type fakeClusterAdmin struct {
	live map[int32]struct{}
}

func (f *fakeClusterAdmin) LiveBrokerIDs() (map[int32]struct{}, error) {
	return f.live, nil
}

func (f *fakeClusterAdmin) Close() error { return nil }

func registration(t *testing.T, host string, port, jmxPort int) []byte {
	t.Helper()
	data, err := json.Marshal(zkBrokerRegistration{Host: host, Port: port, JMXPort: jmxPort})
	require.NoError(t, err)
	return data
}

func TestDiscoverBrokers_ReturnsEveryRegisteredAndLiveBroker(t *testing.T) {
	zkc := &fakeZKClient{
		children: map[string][]string{brokerIdsPath: {"1", "2"}},
		data: map[string][]byte{
			brokerIdsPath + "/1": registration(t, "broker1.example.com", 9092, 9999),
			brokerIdsPath + "/2": registration(t, "broker2.example.com", 9092, 9999),
		},
	}
	admin := &fakeClusterAdmin{live: map[int32]struct{}{1: {}, 2: {}}}
	d := &Discoverer{zkConn: zkc, admin: admin}

	brokers, err := d.DiscoverBrokers()
	require.NoError(t, err)
	assert.Len(t, brokers, 2)
}

func TestDiscoverBrokers_DropsBrokerRegisteredButNotLive(t *testing.T) {
	zkc := &fakeZKClient{
		children: map[string][]string{brokerIdsPath: {"1", "2"}},
		data: map[string][]byte{
			brokerIdsPath + "/1": registration(t, "broker1.example.com", 9092, 9999),
			brokerIdsPath + "/2": registration(t, "broker2.example.com", 9092, 9999),
		},
	}
	admin := &fakeClusterAdmin{live: map[int32]struct{}{1: {}}}
	d := &Discoverer{zkConn: zkc, admin: admin}

	brokers, err := d.DiscoverBrokers()
	require.NoError(t, err)
	require.Len(t, brokers, 1)
	assert.Equal(t, slowbroker.BrokerID(1), brokers[0].ID)
}

func TestDiscoverBrokers_SkipsNonNumericID(t *testing.T) {
	zkc := &fakeZKClient{
		children: map[string][]string{brokerIdsPath: {"not-a-number", "3"}},
		data: map[string][]byte{
			brokerIdsPath + "/3": registration(t, "broker3.example.com", 9092, 9999),
		},
	}
	admin := &fakeClusterAdmin{live: map[int32]struct{}{3: {}}}
	d := &Discoverer{zkConn: zkc, admin: admin}

	brokers, err := d.DiscoverBrokers()
	require.NoError(t, err)
	require.Len(t, brokers, 1)
	assert.Equal(t, slowbroker.BrokerID(3), brokers[0].ID)
}

func TestDiscoverBrokers_SkipsUnreadableRegistration(t *testing.T) {
	zkc := &fakeZKClient{
		children: map[string][]string{brokerIdsPath: {"1"}},
		data:     map[string][]byte{},
	}
	admin := &fakeClusterAdmin{live: map[int32]struct{}{1: {}}}
	d := &Discoverer{zkConn: zkc, admin: admin}

	brokers, err := d.DiscoverBrokers()
	require.NoError(t, err)
	assert.Empty(t, brokers)
}

func TestDiscoverBrokers_PropagatesChildrenError(t *testing.T) {
	zkc := &fakeZKClient{childrenErr: fmt.Errorf("connection lost")}
	admin := &fakeClusterAdmin{live: map[int32]struct{}{}}
	d := &Discoverer{zkConn: zkc, admin: admin}

	_, err := d.DiscoverBrokers()
	assert.Error(t, err)
}

func TestDiscoverBrokers_ParsesHostPortAndJMXPort(t *testing.T) {
	zkc := &fakeZKClient{
		children: map[string][]string{brokerIdsPath: {"5"}},
		data: map[string][]byte{
			brokerIdsPath + "/5": registration(t, "broker5.example.com", 9093, 9998),
		},
	}
	admin := &fakeClusterAdmin{live: map[int32]struct{}{5: {}}}
	d := &Discoverer{zkConn: zkc, admin: admin}

	brokers, err := d.DiscoverBrokers()
	require.NoError(t, err)
	require.Len(t, brokers, 1)
	assert.Equal(t, "broker5.example.com", brokers[0].Host)
	assert.Equal(t, 9093, brokers[0].Port)
	assert.Equal(t, 9998, brokers[0].JMXPort)
}
