package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/mbridger/peakring/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to the panorama cache.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	coordinateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinate",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	horizonSampleType := graphql.NewObject(graphql.ObjectConfig{
		Name: "HorizonSample",
		Fields: graphql.Fields{
			"direction":   &graphql.Field{Type: graphql.Int},
			"elevation":   &graphql.Field{Type: graphql.Float},
			"distance_km": &graphql.Field{Type: graphql.Float},
		},
	})

	viewpointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Viewpoint",
		Fields: graphql.Fields{
			"angle":           &graphql.Field{Type: graphql.Int},
			"location":        &graphql.Field{Type: coordinateType},
			"bearing_to_peak": &graphql.Field{Type: graphql.Float},
			"horizon":         &graphql.Field{Type: graphql.NewList(horizonSampleType)},
		},
	})

	peakType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Peak",
		Fields: graphql.Fields{
			"location":    &graphql.Field{Type: coordinateType},
			"distance_km": &graphql.Field{Type: graphql.Float},
			"half_fov":    &graphql.Field{Type: graphql.Int},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"peak": &graphql.Field{
				Type:        peakType,
				Description: "Generation parameters of the panorama ring",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return map[string]interface{}{
						"location":    domain.Peak,
						"distance_km": domain.RingDistanceKm,
						"half_fov":    domain.HalfFOVDegrees,
					}, nil
				},
			},
			"viewpoint": &graphql.Field{
				Type:        viewpointType,
				Description: "One viewpoint by its generation angle (0-359)",
				Args: graphql.FieldConfigArgument{
					"angle": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					angle := p.Args["angle"].(int)
					if angle < 0 || angle >= domain.RingAngles {
						return nil, fmt.Errorf("angle must be 0-%d", domain.RingAngles-1)
					}
					artifact, err := deps.Panorama.Artifact(p.Context)
					if err != nil {
						return nil, err
					}
					return artifact.Dataset.Viewpoints[angle], nil
				},
			},
			"viewpoints": &graphql.Field{
				Type:        graphql.NewList(viewpointType),
				Description: "A contiguous angle range of viewpoints, bounds inclusive",
				Args: graphql.FieldConfigArgument{
					"from": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
					"to":   &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: domain.RingAngles - 1},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					from := p.Args["from"].(int)
					to := p.Args["to"].(int)
					if from < 0 || to >= domain.RingAngles || from > to {
						return nil, fmt.Errorf("bad angle range [%d, %d]", from, to)
					}
					artifact, err := deps.Panorama.Artifact(p.Context)
					if err != nil {
						return nil, err
					}
					return artifact.Dataset.Viewpoints[from : to+1], nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.Context(),
		})

		return c.JSON(result)
	}
}
