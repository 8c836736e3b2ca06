package orderbook

type color uint8

const (
	red   color = 0
	black color = 1
)

type node struct {
	level  PriceLevel
	color  color
	left   *node
	right  *node
	parent *node
}

func (n *node) key() uint32 { return n.level.Price }

// priceTree is a red-black tree of price levels with a hash index on
// price. Lookups of existing levels go through the index; the tree is
// only descended when a brand-new level is inserted, and deleting a
// level starts from its indexed node.
type priceTree struct {
	root  *node
	nil   *node // sentinel (black)
	index map[uint32]*node
}

func newPriceTree() *priceTree {
	nilNode := &node{color: black}
	return &priceTree{
		root:  nilNode,
		nil:   nilNode,
		index: make(map[uint32]*node),
	}
}

func (t *priceTree) size() int { return len(t.index) }

func (t *priceTree) find(price uint32) *PriceLevel {
	if n, ok := t.index[price]; ok {
		return &n.level
	}
	return nil
}

// upsert returns the level at price, creating it when absent.
func (t *priceTree) upsert(price uint32) (*PriceLevel, bool) {
	if n, ok := t.index[price]; ok {
		return &n.level, false
	}

	y := t.nil
	x := t.root
	for x != t.nil {
		y = x
		if price < x.key() {
			x = x.left
		} else {
			x = x.right
		}
	}

	z := &node{
		level:  PriceLevel{Price: price},
		color:  red,
		left:   t.nil,
		right:  t.nil,
		parent: y,
	}
	if y == t.nil {
		t.root = z
	} else if price < y.key() {
		y.left = z
	} else {
		y.right = z
	}
	t.insertFixup(z)
	t.index[price] = z
	return &z.level, true
}

func (t *priceTree) delete(price uint32) bool {
	z, ok := t.index[price]
	if !ok {
		return false
	}
	delete(t.index, price)
	t.deleteNode(z)
	return true
}

func (t *priceTree) ascend(fn func(*PriceLevel) bool) {
	for n := t.minNode(t.root); n != t.nil; n = t.next(n) {
		if !fn(&n.level) {
			return
		}
	}
}

func (t *priceTree) descend(fn func(*PriceLevel) bool) {
	for n := t.maxNode(t.root); n != t.nil; n = t.prev(n) {
		if !fn(&n.level) {
			return
		}
	}
}

func (t *priceTree) min() *PriceLevel {
	n := t.minNode(t.root)
	if n == t.nil {
		return nil
	}
	return &n.level
}

func (t *priceTree) max() *PriceLevel {
	n := t.maxNode(t.root)
	if n == t.nil {
		return nil
	}
	return &n.level
}

/******************** Internal helpers ********************/

func (t *priceTree) minNode(n *node) *node {
	if n == t.nil {
		return t.nil
	}
	for n.left != t.nil {
		n = n.left
	}
	return n
}

func (t *priceTree) maxNode(n *node) *node {
	if n == t.nil {
		return t.nil
	}
	for n.right != t.nil {
		n = n.right
	}
	return n
}

func (t *priceTree) next(n *node) *node {
	if n.right != t.nil {
		return t.minNode(n.right)
	}
	p := n.parent
	for p != t.nil && n == p.right {
		n = p
		p = p.parent
	}
	return p
}

func (t *priceTree) prev(n *node) *node {
	if n.left != t.nil {
		return t.maxNode(n.left)
	}
	p := n.parent
	for p != t.nil && n == p.left {
		n = p
		p = p.parent
	}
	return p
}

func (t *priceTree) leftRotate(x *node) {
	y := x.right
	x.right = y.left
	if y.left != t.nil {
		y.left.parent = x
	}
	y.parent = x.parent
	if x.parent == t.nil {
		t.root = y
	} else if x == x.parent.left {
		x.parent.left = y
	} else {
		x.parent.right = y
	}
	y.left = x
	x.parent = y
}

func (t *priceTree) rightRotate(y *node) {
	x := y.left
	y.left = x.right
	if x.right != t.nil {
		x.right.parent = y
	}
	x.parent = y.parent
	if y.parent == t.nil {
		t.root = x
	} else if y == y.parent.right {
		y.parent.right = x
	} else {
		y.parent.left = x
	}
	x.right = y
	y.parent = x
}

func (t *priceTree) insertFixup(z *node) {
	for z.parent.color == red {
		if z.parent == z.parent.parent.left {
			y := z.parent.parent.right
			if y.color == red {
				z.parent.color = black
				y.color = black
				z.parent.parent.color = red
				z = z.parent.parent
			} else {
				if z == z.parent.right {
					z = z.parent
					t.leftRotate(z)
				}
				z.parent.color = black
				z.parent.parent.color = red
				t.rightRotate(z.parent.parent)
			}
		} else {
			y := z.parent.parent.left
			if y.color == red {
				z.parent.color = black
				y.color = black
				z.parent.parent.color = red
				z = z.parent.parent
			} else {
				if z == z.parent.left {
					z = z.parent
					t.rightRotate(z)
				}
				z.parent.color = black
				z.parent.parent.color = red
				t.leftRotate(z.parent.parent)
			}
		}
	}
	t.root.color = black
}

func (t *priceTree) transplant(u, v *node) {
	if u.parent == t.nil {
		t.root = v
	} else if u == u.parent.left {
		u.parent.left = v
	} else {
		u.parent.right = v
	}
	v.parent = u.parent
}

// deleteNode relinks nodes rather than copying keys, so *PriceLevel
// pointers held for other levels stay valid.
func (t *priceTree) deleteNode(z *node) {
	y := z
	yOrigColor := y.color
	var x *node

	if z.left == t.nil {
		x = z.right
		t.transplant(z, z.right)
	} else if z.right == t.nil {
		x = z.left
		t.transplant(z, z.left)
	} else {
		y = t.minNode(z.right)
		yOrigColor = y.color
		x = y.right
		if y.parent == z {
			x.parent = y
		} else {
			t.transplant(y, y.right)
			y.right = z.right
			y.right.parent = y
		}
		t.transplant(z, y)
		y.left = z.left
		y.left.parent = y
		y.color = z.color
	}

	if yOrigColor == black {
		t.deleteFixup(x)
	}
	z.left, z.right, z.parent = nil, nil, nil
}

func (t *priceTree) deleteFixup(x *node) {
	for x != t.root && x.color == black {
		if x == x.parent.left {
			w := x.parent.right
			if w.color == red {
				w.color = black
				x.parent.color = red
				t.leftRotate(x.parent)
				w = x.parent.right
			}
			if w.left.color == black && w.right.color == black {
				w.color = red
				x = x.parent
			} else {
				if w.right.color == black {
					w.left.color = black
					w.color = red
					t.rightRotate(w)
					w = x.parent.right
				}
				w.color = x.parent.color
				x.parent.color = black
				w.right.color = black
				t.leftRotate(x.parent)
				x = t.root
			}
		} else {
			w := x.parent.left
			if w.color == red {
				w.color = black
				x.parent.color = red
				t.rightRotate(x.parent)
				w = x.parent.left
			}
			if w.right.color == black && w.left.color == black {
				w.color = red
				x = x.parent
			} else {
				if w.left.color == black {
					w.right.color = black
					w.color = red
					t.leftRotate(w)
					w = x.parent.left
				}
				w.color = x.parent.color
				x.parent.color = black
				w.left.color = black
				t.rightRotate(x.parent)
				x = t.root
			}
		}
	}
	x.color = black
}
