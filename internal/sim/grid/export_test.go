package grid

// CachedFields is the number of distance fields held for the current sub-turn.
func CachedFields(g *Grid) int { return len(g.distCache) }
