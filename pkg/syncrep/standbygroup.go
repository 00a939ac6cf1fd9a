package syncrep

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/quorumix/fxcoord/pkg/types"
)

// StandbyGroupNode is one node of the static standby-group tree: either a
// named standby, the wildcard member, or a group carrying a quorum method,
// a wait_num, and a child list. The tree is rebuilt whenever
// synchronous_standby_names changes.
type StandbyGroupNode struct {
	Name     string
	Wildcard bool

	Method   types.QuorumMethod
	WaitNum  int
	Children []*StandbyGroupNode
}

func (n *StandbyGroupNode) isLeaf() bool {
	return n.Children == nil
}

// ParseStandbyGroup parses a synchronous_standby_names value into a
// StandbyGroupNode tree. Grammar:
//
//	group      := member_list | [method] num '(' member_list ')'
//	method     := "FIRST" | "ANY"   (ANY is treated as a PRIORITY synonym)
//	member_list := member (',' member)*
//	member     := quoted_name | bare_name | '*'
//
// A bare member_list with no method/num prefix is legacy priority syntax:
// equivalent to "FIRST 1 (member_list)".
func ParseStandbyGroup(raw string) (*StandbyGroupNode, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}

	if method, num, rest, ok := parseGroupPrefix(s); ok {
		members, err := parseMemberList(rest)
		if err != nil {
			return nil, err
		}
		return &StandbyGroupNode{Method: method, WaitNum: num, Children: members}, nil
	}

	members, err := parseMemberList(s)
	if err != nil {
		return nil, err
	}
	return &StandbyGroupNode{Method: types.QuorumPriority, WaitNum: 1, Children: members}, nil
}

// parseGroupPrefix recognizes "FIRST N (" or "ANY N (" or "N (" at the
// start of s, consuming through the matching close paren. It returns false
// if s does not start with a recognizable group prefix.
func parseGroupPrefix(s string) (method types.QuorumMethod, num int, inner string, ok bool) {
	rest := s
	method = types.QuorumPriority

	upper := strings.ToUpper(rest)
	switch {
	case strings.HasPrefix(upper, "FIRST"):
		rest = strings.TrimSpace(rest[len("FIRST"):])
	case strings.HasPrefix(upper, "ANY"):
		rest = strings.TrimSpace(rest[len("ANY"):])
	}

	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i == 0 {
		return "", 0, "", false
	}
	n, err := strconv.Atoi(rest[:i])
	if err != nil {
		return "", 0, "", false
	}
	rest = strings.TrimSpace(rest[i:])

	if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return "", 0, "", false
	}
	return method, n, rest[1 : len(rest)-1], true
}

func parseMemberList(s string) ([]*StandbyGroupNode, error) {
	parts := splitTopLevel(s)
	if len(parts) == 0 {
		return nil, fmt.Errorf("syncrep: empty member list")
	}
	nodes := make([]*StandbyGroupNode, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if p == "*" {
			nodes = append(nodes, &StandbyGroupNode{Wildcard: true})
			continue
		}
		if len(p) >= 2 && p[0] == '\'' && p[len(p)-1] == '\'' {
			nodes = append(nodes, &StandbyGroupNode{Name: p[1 : len(p)-1]})
			continue
		}
		nodes = append(nodes, &StandbyGroupNode{Name: p})
	}
	return nodes, nil
}

// splitTopLevel splits s on commas that are not inside parentheses (the
// grammar is not recursive beyond one group level, but this keeps the
// parser correct if it ever is).
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	last := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, s[last:])
	return parts
}

// SyncList returns the first group.WaitNum standbys from states that
// qualify as active sync members, in group member order. A wildcard
// member admits any still-unlisted active standby (in the order states
// was given) up to WaitNum.
func SyncList(group *StandbyGroupNode, states []StandbyState) []StandbyState {
	if group == nil {
		return nil
	}

	byName := make(map[string]StandbyState, len(states))
	for _, s := range states {
		byName[s.Name] = s
	}
	used := make(map[string]bool, len(states))

	var out []StandbyState
	for _, member := range group.Children {
		if len(out) >= group.WaitNum {
			break
		}
		if member.Wildcard {
			for _, s := range states {
				if len(out) >= group.WaitNum {
					break
				}
				if used[s.Name] || !s.active() {
					continue
				}
				used[s.Name] = true
				out = append(out, s)
			}
			continue
		}
		s, ok := byName[member.Name]
		if !ok || used[s.Name] || !s.active() {
			continue
		}
		used[s.Name] = true
		out = append(out, s)
	}
	return out
}

// GetSyncedLsns implements the priority-method standby-group evaluation:
// it returns the minimum write/flush LSN across the sync list, or ok=false
// if fewer than WaitNum standbys currently qualify.
func GetSyncedLsns(group *StandbyGroupNode, states []StandbyState) (write, flush types.LSN, ok bool) {
	if group == nil {
		return 0, 0, false
	}
	syncList := SyncList(group, states)
	if len(syncList) < group.WaitNum {
		return 0, 0, false
	}

	write = syncList[0].WriteLSN
	flush = syncList[0].FlushLSN
	for _, s := range syncList[1:] {
		if s.WriteLSN < write {
			write = s.WriteLSN
		}
		if s.FlushLSN < flush {
			flush = s.FlushLSN
		}
	}
	return write, flush, true
}
