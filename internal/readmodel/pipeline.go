package readmodel

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Pipeline compiles the view to $match followed by one correlated $lookup per
// join. Each nesting level binds its own let variable so inner sub-pipelines
// never shadow the outer reference.
func (v View) Pipeline() mongo.Pipeline {
	p := mongo.Pipeline{{{Key: "$match", Value: v.filter()}}}
	for _, j := range v.Joins {
		p = append(p, j.lookup(0))
	}
	return p
}

func (j Join) lookup(depth int) bson.D {
	ref := fmt.Sprintf("ref%d", depth)
	sub := bson.A{
		bson.D{{Key: "$match", Value: bson.D{{Key: "$expr", Value: bson.D{
			{Key: "$eq", Value: bson.A{"$$" + ref, "$" + j.ForeignField}},
		}}}}},
	}
	for _, nested := range j.Joins {
		sub = append(sub, nested.lookup(depth+1))
	}
	if len(j.Exclude) > 0 {
		project := bson.D{}
		for _, f := range j.Exclude {
			project = append(project, bson.E{Key: f, Value: 0})
		}
		sub = append(sub, bson.D{{Key: "$project", Value: project}})
	}
	return bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: j.From},
		{Key: "let", Value: bson.D{{Key: ref, Value: "$" + j.LocalField}}},
		{Key: "pipeline", Value: sub},
		{Key: "as", Value: j.As},
	}}}
}
