// Package yamlimport migrates the legacy circuits.yaml / circuit_proposals.yaml
// files into an adminstore.Store, grounded on original_source/cli/action/database/upgrade/yaml.rs
// (spec §6 "YAML legacy", §8 S6).
package yamlimport

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/splinter-rs/splinter-go/routing"
	"github.com/splinter-rs/splinter-go/store/adminstore"
	"github.com/splinter-rs/splinter-go/wire"
)

// yamlNode is a node-registry entry: circuits.yaml never stored endpoints
// per-circuit, only at node level, so the importer must join on node_id.
type yamlNode struct {
	Identity  string   `yaml:"identity"`
	Endpoints []string `yaml:"endpoints"`
}

type yamlMember struct {
	NodeID string `yaml:"node_id"`
}

type yamlArgument struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

type yamlService struct {
	ServiceID    string         `yaml:"service_id"`
	ServiceType  string         `yaml:"service_type"`
	AllowedNodes []string       `yaml:"allowed_nodes"`
	Arguments    []yamlArgument `yaml:"arguments"`
}

type yamlCircuit struct {
	ID                  string        `yaml:"id"`
	Roster              []yamlService `yaml:"roster"`
	Members             []yamlMember  `yaml:"members"`
	AuthorizationType   string        `yaml:"authorization_type"`
	Persistence         string        `yaml:"persistence_strategy"`
	Durability          string        `yaml:"durability"`
	Routes              string        `yaml:"routes"`
	CircuitManagementType string      `yaml:"circuit_management_type"`
	ApplicationMetadata []byte        `yaml:"application_metadata"`
	Comments            string        `yaml:"comments"`
}

type circuitsFile struct {
	Circuits []yamlCircuit `yaml:"circuits"`
	Nodes    []yamlNode    `yaml:"nodes"`
}

type proposalsFile struct {
	Proposals []yamlProposal `yaml:"proposals"`
}

type yamlVote struct {
	PublicKey   string `yaml:"public_key"`
	VoterNodeID string `yaml:"voter_node_id"`
	Vote        string `yaml:"vote"`
}

type yamlProposal struct {
	ProposalType        string      `yaml:"proposal_type"`
	CircuitID           string      `yaml:"circuit_id"`
	CircuitHash         string      `yaml:"circuit_hash"`
	Circuit             yamlCircuit `yaml:"circuit"`
	Votes               []yamlVote  `yaml:"votes"`
	RequesterPublicKey  string      `yaml:"requester"`
	RequesterNodeID     string      `yaml:"requester_node_id"`
}

// Result summarizes what Import did.
type Result struct {
	CircuitsImported  int
	ProposalsImported int
	NoOp              bool
}

// Import reads circuits.yaml and circuit_proposals.yaml from dir, joins
// member node ids against the node registry embedded in circuits.yaml to
// recover endpoints, writes every row into store, and renames both input
// files to ".yaml.old" on success. Absence of both files is a no-op.
func Import(dir string, store adminstore.Store) (Result, error) {
	circuitsPath := filepath.Join(dir, "circuits.yaml")
	proposalsPath := filepath.Join(dir, "circuit_proposals.yaml")

	circuitsExists := fileExists(circuitsPath)
	proposalsExists := fileExists(proposalsPath)
	if !circuitsExists && !proposalsExists {
		return Result{NoOp: true}, nil
	}

	var nodeEndpoints map[string][]string
	var cf circuitsFile
	if circuitsExists {
		data, err := os.ReadFile(circuitsPath)
		if err != nil {
			return Result{}, fmt.Errorf("yamlimport: reading %s: %w", circuitsPath, err)
		}
		if err := yaml.Unmarshal(data, &cf); err != nil {
			return Result{}, fmt.Errorf("yamlimport: parsing %s: %w", circuitsPath, err)
		}
	}
	nodeEndpoints = make(map[string][]string, len(cf.Nodes))
	for _, n := range cf.Nodes {
		nodeEndpoints[n.Identity] = n.Endpoints
	}

	var result Result

	for _, yc := range cf.Circuits {
		circuit, members, err := joinCircuit(yc, nodeEndpoints)
		if err != nil {
			return result, err
		}
		if err := store.AddCircuit(circuit, members); err != nil {
			return result, fmt.Errorf("yamlimport: importing circuit %s: %w", circuit.CircuitID, err)
		}
		result.CircuitsImported++
	}

	if proposalsExists {
		data, err := os.ReadFile(proposalsPath)
		if err != nil {
			return result, fmt.Errorf("yamlimport: reading %s: %w", proposalsPath, err)
		}
		var pf proposalsFile
		if err := yaml.Unmarshal(data, &pf); err != nil {
			return result, fmt.Errorf("yamlimport: parsing %s: %w", proposalsPath, err)
		}
		for _, yp := range pf.Proposals {
			circuit, _, err := joinCircuit(yp.Circuit, nodeEndpoints)
			if err != nil {
				return result, err
			}
			votes := make([]wire.VoteRecord, 0, len(yp.Votes))
			for _, v := range yp.Votes {
				votes = append(votes, wire.VoteRecord{
					PublicKey:   []byte(v.PublicKey),
					VoterNodeID: v.VoterNodeID,
					Vote:        parseVote(v.Vote),
				})
			}
			proposal := wire.CircuitProposal{
				ProposalType:       parseProposalType(yp.ProposalType),
				CircuitID:          yp.CircuitID,
				CircuitHash:        yp.CircuitHash,
				ProposedCircuit:    circuit,
				Votes:              votes,
				RequesterPublicKey: []byte(yp.RequesterPublicKey),
				RequesterNodeID:    yp.RequesterNodeID,
			}
			if err := store.AddProposal(proposal); err != nil {
				return result, fmt.Errorf("yamlimport: importing proposal %s: %w", proposal.CircuitID, err)
			}
			result.ProposalsImported++
		}
	}

	if circuitsExists {
		if err := os.Rename(circuitsPath, circuitsPath+".old"); err != nil {
			return result, fmt.Errorf("yamlimport: renaming %s: %w", circuitsPath, err)
		}
	}
	if proposalsExists {
		if err := os.Rename(proposalsPath, proposalsPath+".old"); err != nil {
			return result, fmt.Errorf("yamlimport: renaming %s: %w", proposalsPath, err)
		}
	}
	return result, nil
}

func joinCircuit(yc yamlCircuit, nodeEndpoints map[string][]string) (wire.Circuit, []routing.CircuitNode, error) {
	members := make([]wire.Member, 0, len(yc.Members))
	nodes := make([]routing.CircuitNode, 0, len(yc.Members))
	for _, m := range yc.Members {
		endpoints, ok := nodeEndpoints[m.NodeID]
		if !ok || len(endpoints) == 0 {
			return wire.Circuit{}, nil, fmt.Errorf("yamlimport: node %s referenced by circuit %s has no endpoints in the node registry", m.NodeID, yc.ID)
		}
		members = append(members, wire.Member{NodeID: m.NodeID, Endpoints: endpoints})
		nodes = append(nodes, routing.CircuitNode{NodeID: m.NodeID, Endpoints: endpoints})
	}

	roster := make([]wire.Service, 0, len(yc.Roster))
	for _, s := range yc.Roster {
		args := make([]wire.KV, 0, len(s.Arguments))
		for _, a := range s.Arguments {
			args = append(args, wire.KV{Key: a.Key, Value: a.Value})
		}
		roster = append(roster, wire.Service{
			ServiceID:    s.ServiceID,
			ServiceType:  s.ServiceType,
			AllowedNodes: s.AllowedNodes,
			Arguments:    args,
		})
	}

	circuit := wire.Circuit{
		CircuitID:           yc.ID,
		Roster:              roster,
		Members:             members,
		AuthorizationType:   parseAuthorizationType(yc.AuthorizationType),
		Persistence:         parsePersistenceType(yc.Persistence),
		Durability:          parseDurabilityType(yc.Durability),
		Routes:              parseRouteType(yc.Routes),
		ManagementType:      yc.CircuitManagementType,
		ApplicationMetadata: yc.ApplicationMetadata,
		Comments:            yc.Comments,
	}
	return circuit, nodes, nil
}

// Only one legal value exists for each of these four enums today (see
// wire.ValidateCircuit), so every legacy yaml value maps to it; these stay
// functions rather than constants so a second legal value only needs a
// branch added here, not at every call site.
func parseAuthorizationType(s string) wire.AuthorizationType {
	return wire.AuthorizationTrust
}

func parsePersistenceType(s string) wire.PersistenceType {
	return wire.PersistenceAny
}

func parseDurabilityType(s string) wire.DurabilityType {
	return wire.DurabilityNoDurability
}

func parseRouteType(s string) wire.RouteType {
	return wire.RouteAny
}

func parseVote(s string) wire.Vote {
	if s == "Reject" {
		return wire.VoteReject
	}
	return wire.VoteAccept
}

func parseProposalType(s string) wire.ProposalType {
	if s == "Disband" {
		return wire.ProposalDisband
	}
	return wire.ProposalCreate
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
