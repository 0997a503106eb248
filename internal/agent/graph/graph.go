package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/tourwise/server/internal/agent/graph/nodes"
	"github.com/tourwise/server/internal/agent/graph/observers"
	"github.com/tourwise/server/internal/agent/handlers"
	"github.com/tourwise/server/internal/agent/model"
	"github.com/tourwise/server/internal/classify"
	logx "github.com/tourwise/server/pkg/logger"
)

// maxRunSteps bounds one turn: the graph is single-pass, so anything past
// this indicates a routing bug rather than legitimate work.
const maxRunSteps = 20

// Runner is a thin wrapper to execute the compiled graph with the public TurnInput.
type Runner interface {
	Invoke(ctx context.Context, in model.TurnInput) (*model.TurnOutput, error)
}

// Config holds the classifier and handlers needed to compose the turn graph.
type Config struct {
	Classifier *classify.Classifier
	Policy     *handlers.PolicyHandler
	Planner    *handlers.PlannerHandler
	Confirm    *handlers.ConfirmHandler
	Booking    *handlers.BookingHandler
}

// GraphBuilder handles the construction of the conversation turn graph.
type GraphBuilder struct {
	config *Config
	graph  *compose.Graph[model.TurnInput, *model.TurnOutput]
}

type graphRunner struct {
	runnable compose.Runnable[model.TurnInput, *model.TurnOutput]
}

func (r *graphRunner) Invoke(ctx context.Context, in model.TurnInput) (*model.TurnOutput, error) {
	return r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
}

// BuildTurnGraph constructs and compiles the full turn graph and returns a Runner.
func BuildTurnGraph(ctx context.Context, cfg *Config) (Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if cfg.Classifier == nil {
		return nil, fmt.Errorf("classifier is nil")
	}
	if cfg.Policy == nil || cfg.Planner == nil || cfg.Confirm == nil || cfg.Booking == nil {
		return nil, fmt.Errorf("handlers are not properly initialized")
	}

	builder := &GraphBuilder{
		config: cfg,
		graph: compose.NewGraph[model.TurnInput, *model.TurnOutput](
			compose.WithGenLocalState(func(ctx context.Context) *model.ConversationState {
				return &model.ConversationState{}
			}),
		),
	}

	builder.addNodes()
	builder.addEdges()

	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	runnable, err := builder.compile(ctx)
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Turn graph built successfully")
	return &graphRunner{runnable: runnable}, nil
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() {
	b.graph.AddLambdaNode(nodes.NodeClassify,
		nodes.NewClassifyNode(b.config.Classifier),
		compose.WithStatePreHandler(nodes.NewClassifyPreHandler()),
		compose.WithStatePostHandler(nodes.NewClassifyPostHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodePolicy, nodes.NewPolicyNode(b.config.Policy))
	b.graph.AddLambdaNode(nodes.NodePlanner, nodes.NewPlannerNode(b.config.Planner))
	b.graph.AddLambdaNode(nodes.NodeConfirm, nodes.NewConfirmNode(b.config.Confirm))
	b.graph.AddLambdaNode(nodes.NodeBooking, nodes.NewBookingNode(b.config.Booking))
	b.graph.AddLambdaNode(nodes.NodeGeneral, nodes.NewGeneralNode())
	b.graph.AddLambdaNode(nodes.NodeFinish, nodes.NewFinishNode())
}

// addEdges creates the unconditional flow connections between nodes
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeClassify},
		{nodes.NodePolicy, nodes.NodeFinish},
		{nodes.NodeGeneral, nodes.NodeFinish},
		{nodes.NodeBooking, nodes.NodeFinish},
		{nodes.NodeFinish, compose.END},
	}

	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	intentBranch := compose.NewGraphBranch(
		nodes.NewIntentCondition(),
		map[string]bool{
			nodes.NodePolicy:  true,
			nodes.NodePlanner: true,
			nodes.NodeConfirm: true,
			nodes.NodeGeneral: true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeClassify, intentBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding intent branch")
		return fmt.Errorf("error adding intent branch: %w", err)
	}

	plannerBranch := compose.NewGraphBranch(
		nodes.NewPlannerCondition(),
		map[string]bool{
			nodes.NodeConfirm: true,
			nodes.NodeFinish:  true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodePlanner, plannerBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding planner branch")
		return fmt.Errorf("error adding planner branch: %w", err)
	}

	confirmBranch := compose.NewGraphBranch(
		nodes.NewConfirmCondition(),
		map[string]bool{
			nodes.NodeBooking: true,
			nodes.NodeFinish:  true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeConfirm, confirmBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding confirm branch")
		return fmt.Errorf("error adding confirm branch: %w", err)
	}

	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.TurnInput, *model.TurnOutput], error) {
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(maxRunSteps))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
