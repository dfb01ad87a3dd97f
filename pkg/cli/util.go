package cli

import (
	"sort"

	"github.com/harrisonrobin/studyplan/pkg/model"
)

func sortByStart(blocks []model.Block) {
	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].Start.Before(blocks[j].Start) })
}
