package config

// Topology is the deployment shape of the backend store.
type Topology string

const (
	TopologyInstance   Topology = "instance"
	TopologyCluster    Topology = "cluster"
	TopologyReplicated Topology = "replicated"
	TopologyProxy      Topology = "proxy"
	TopologyRelay      Topology = "relay"
)

// Server roles for the replicated topology.
const (
	RoleMaster  = "master"
	RoleReplica = "replica"
)

// Server is one role-tagged endpoint of a replicated deployment.
type Server struct {
	Addr string `json:"addr" yaml:"addr"`
	Role string `json:"role" yaml:"role"`
}

// Valid reports whether t names a known topology.
func (t Topology) Valid() bool {
	switch t {
	case TopologyInstance, TopologyCluster, TopologyReplicated, TopologyProxy, TopologyRelay:
		return true
	}
	return false
}
