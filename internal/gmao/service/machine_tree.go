package service

import (
	"fmt"
	"sort"

	"github.com/JBDLC/GMAO/internal/gmao/entity"
)

// machineIndex 设备 id -> parent_id，父节点只以 id 形式保存
type machineIndex map[string]*string

func (idx machineIndex) parent(id string) (string, bool) {
	p, ok := idx[id]
	if !ok || p == nil || *p == "" {
		return "", false
	}
	return *p, true
}

// path 从 id 走到根，返回 [id, parent, ..., root]；遇到环返回错误
func (idx machineIndex) path(id string) ([]string, error) {
	if _, ok := idx[id]; !ok {
		return nil, notFoundf("machine", id)
	}
	visited := map[string]bool{}
	var out []string
	cur := id
	for {
		if visited[cur] {
			return nil, fmt.Errorf("machine tree cycle detected at %s", cur)
		}
		visited[cur] = true
		out = append(out, cur)
		p, ok := idx.parent(cur)
		if !ok {
			return out, nil
		}
		cur = p
	}
}

// depth 根节点为1
func (idx machineIndex) depth(id string) (int, error) {
	p, err := idx.path(id)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (idx machineIndex) root(id string) (string, error) {
	p, err := idx.path(id)
	if err != nil {
		return "", err
	}
	return p[len(p)-1], nil
}

func (idx machineIndex) children() map[string][]string {
	out := make(map[string][]string)
	for id := range idx {
		if p, ok := idx.parent(id); ok {
			out[p] = append(out[p], id)
		}
	}
	for k := range out {
		sort.Strings(out[k])
	}
	return out
}

// subtree 返回 id 及其全部后代
func (idx machineIndex) subtree(id string) []string {
	children := idx.children()
	var out []string
	stack := []string{id}
	seen := map[string]bool{}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		out = append(out, cur)
		stack = append(stack, children[cur]...)
	}
	return out
}

// height 子树层数（叶子为1）
func (idx machineIndex) height(id string) int {
	children := idx.children()
	var walk func(string, map[string]bool) int
	walk = func(n string, seen map[string]bool) int {
		if seen[n] {
			return 0
		}
		seen[n] = true
		best := 0
		for _, c := range children[n] {
			if h := walk(c, seen); h > best {
				best = h
			}
		}
		return best + 1
	}
	return walk(id, map[string]bool{})
}

// isDescendant candidate 是否位于 ancestor 的子树中（含自身）
func (idx machineIndex) isDescendant(candidate, ancestor string) bool {
	p, err := idx.path(candidate)
	if err != nil {
		return false
	}
	for _, id := range p {
		if id == ancestor {
			return true
		}
	}
	return false
}

// TreeNode 设备树节点
type TreeNode struct {
	entity.Machine
	Level    int         `json:"level"`
	IsRoot   bool        `json:"is_root"`
	Children []*TreeNode `json:"children"`
}

// buildTree 按名称排序构建森林
func buildTree(machines []entity.Machine) []*TreeNode {
	nodes := make(map[string]*TreeNode, len(machines))
	for i := range machines {
		nodes[machines[i].ID] = &TreeNode{Machine: machines[i], Children: []*TreeNode{}}
	}
	var roots []*TreeNode
	for i := range machines {
		n := nodes[machines[i].ID]
		if p := n.ParentID; p != nil && *p != "" {
			if parent, ok := nodes[*p]; ok {
				parent.Children = append(parent.Children, n)
				continue
			}
		}
		n.IsRoot = true
		roots = append(roots, n)
	}
	var setLevel func(n *TreeNode, level int)
	setLevel = func(n *TreeNode, level int) {
		n.Level = level
		sort.Slice(n.Children, func(i, j int) bool { return n.Children[i].Name < n.Children[j].Name })
		for _, c := range n.Children {
			setLevel(c, level+1)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].Name < roots[j].Name })
	for _, r := range roots {
		setLevel(r, 0)
	}
	return roots
}
