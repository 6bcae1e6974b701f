// internal/pkg/nacos/client.go
package nacos

import (
	"context"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/model"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"github.com/pkg/errors"

	"glimmer/internal/pkg/logger"
)

const defaultGroup = "DEFAULT_GROUP"

// namingAPI 是本项目用到的命名服务子集，*naming_client.NamingClient 满足该接口
type namingAPI interface {
	RegisterInstance(param vo.RegisterInstanceParam) (bool, error)
	DeregisterInstance(param vo.DeregisterInstanceParam) (bool, error)
	SelectOneHealthyInstance(param vo.SelectOneHealthInstanceParam) (*model.Instance, error)
	CloseClient()
}

// Client 负责 checkout 实例注册，以及目录服务地址发现
type Client struct {
	naming namingAPI
	group  string
}

// NewNacosClient addrs 形如 "ip1:port1,ip2:port2"
func NewNacosClient(addrs string, namespaceID, group string) (*Client, error) {
	log := logger.Ctx(context.Background())
	if namespaceID == "" {
		log.Warn().Msg("nacos namespace not set, using public namespace")
	}

	serverConfigs, err := parseServerConfigs(addrs)
	if err != nil {
		return nil, err
	}
	clientConfig := constant.NewClientConfig(
		constant.WithNotLoadCacheAtStart(true),
		constant.WithLogDir("/tmp/nacos/log"),
		constant.WithCacheDir("/tmp/nacos/cache"),
		constant.WithLogLevel("warn"),
		constant.WithNamespaceId(namespaceID),
	)
	naming, err := clients.NewNamingClient(vo.NacosClientParam{
		ClientConfig:  clientConfig,
		ServerConfigs: serverConfigs,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create nacos naming client")
	}

	log.Info().Str("addrs", addrs).Msg("Connected to Nacos.")
	return newClient(naming, group), nil
}

func newClient(naming namingAPI, group string) *Client {
	if group == "" {
		group = defaultGroup
	}
	return &Client{naming: naming, group: group}
}

func parseServerConfigs(addrs string) ([]constant.ServerConfig, error) {
	var out []constant.ServerConfig
	for _, addr := range strings.Split(addrs, ",") {
		host, rawPort, err := net.SplitHostPort(strings.TrimSpace(addr))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid nacos address %q", addr)
		}
		port, err := strconv.ParseUint(rawPort, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid port in nacos address %q", addr)
		}
		out = append(out, *constant.NewServerConfig(host, port))
	}
	return out, nil
}

// RegisterServiceInstance 注册临时实例，心跳断开后 Nacos 自动摘除
func (c *Client) RegisterServiceInstance(serviceName, ip string, port int) error {
	ok, err := c.naming.RegisterInstance(vo.RegisterInstanceParam{
		Ip:          ip,
		Port:        uint64(port),
		ServiceName: serviceName,
		Weight:      10,
		Enable:      true,
		Healthy:     true,
		Ephemeral:   true,
		GroupName:   c.group,
	})
	if err != nil {
		return errors.Wrapf(err, "register %s with nacos", serviceName)
	}
	if !ok {
		return errors.Errorf("nacos rejected registration of %s", serviceName)
	}
	return nil
}

func (c *Client) DeregisterServiceInstance(serviceName, ip string, port int) error {
	if _, err := c.naming.DeregisterInstance(vo.DeregisterInstanceParam{
		Ip:          ip,
		Port:        uint64(port),
		ServiceName: serviceName,
		Ephemeral:   true,
		GroupName:   c.group,
	}); err != nil {
		return errors.Wrapf(err, "deregister %s from nacos", serviceName)
	}
	return nil
}

// ResolveBaseURL 由 Nacos 按权重挑一个健康实例，返回 http://ip:port
func (c *Client) ResolveBaseURL(_ context.Context, serviceName string) (string, error) {
	instance, err := c.naming.SelectOneHealthyInstance(vo.SelectOneHealthInstanceParam{
		ServiceName: serviceName,
		GroupName:   c.group,
	})
	if err != nil {
		return "", errors.Wrapf(err, "discover healthy instance of %s", serviceName)
	}
	if instance == nil {
		return "", errors.Errorf("no healthy instance of %s", serviceName)
	}
	u := url.URL{Scheme: "http", Host: net.JoinHostPort(instance.Ip, strconv.FormatUint(instance.Port, 10))}
	return u.String(), nil
}

func (c *Client) Close() {
	if c.naming != nil {
		c.naming.CloseClient()
	}
}
