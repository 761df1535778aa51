package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `handshake runs a freelance deal from signed contract to paid milestones.

Model:
- Contract: drafted by the client, sent to the freelancer, active once both parties sign.
- Workspace: created exactly once when a contract activates. Shared data is visible to both
  parties; each party also has private notes and files the other never sees.
- Milestone: one per contract phase. pending -> in_progress -> awaiting_approval -> completed,
  with revision_requested looping back to the freelancer.

Workflow:
1) list_contracts / get_contract to orient.
2) Client: create_contract, send_contract, sign_contract. Freelancer: sign_contract or decline_contract.
3) get_workspace once active. Its permissions and milestone actions say what you may do next.
4) Freelancer: start_milestone, submit_milestone. Client: approve_milestone or request_revision,
   then record_payment.
5) Pass expected_version on milestone actions when acting on data you read earlier; a CONFLICT
   means someone else acted first. Re-read and decide again.

Docs:
- handshake://docs/index
- handshake://docs/lifecycle
- handshake://docs/roles
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "handshake://docs/index",
		Name:        "docs_index",
		Title:       "handshake docs index",
		Description: "Entry point: which tools exist and which doc to read next.",
		Content: `# handshake docs

## Tools by stage

- Signing: create_contract, send_contract, sign_contract, decline_contract, cancel_contract.
- Collaboration: get_workspace, post_message, mark_read, add_file, add_note, schedule_call.
- Delivery: list_milestones, start_milestone, submit_milestone, approve_milestone,
  request_revision, record_payment, get_milestone_stats.
- Audit: get_recent_activity.

## Read next

- handshake://docs/lifecycle for the contract and milestone state machines.
- handshake://docs/roles for what each party sees and may do.

## Errors

Failed tools return a JSON body with code, message and sometimes recovery_hint.
Codes: CONTRACT_NOT_FOUND, WORKSPACE_NOT_FOUND, MILESTONE_NOT_FOUND, ALREADY_SIGNED,
INVALID_TRANSITION, CONFLICT, ACCESS_DENIED, DEPENDENCY_FAILURE, INVALID_INPUT, INTERNAL.
`,
	},
	{
		URI:         "handshake://docs/lifecycle",
		Name:        "docs_lifecycle",
		Title:       "Contract and milestone lifecycle",
		Description: "Allowed status transitions and what triggers them.",
		Content: `# Lifecycle

## Contract

draft -> sent (client sends)
sent -> pending_client | pending_freelancer (first signature)
pending_* -> active (second signature; the workspace is provisioned)
draft | sent | pending_* -> cancelled (either party)
sent -> declined (freelancer)
active -> completed (every milestone approved)

Signing twice returns ALREADY_SIGNED. Terminal contracts never change.

## Milestone

pending -> in_progress (freelancer starts)
in_progress | revision_requested -> awaiting_approval (freelancer submits)
awaiting_approval -> completed (client approves; becomes payment eligible)
awaiting_approval -> revision_requested (client asks for changes)

Approving phase N moves the workspace to phase N+1 and recomputes overall progress.
record_payment is only allowed on completed, payment-eligible milestones and only once.
`,
	},
	{
		URI:         "handshake://docs/roles",
		Name:        "docs_roles",
		Title:       "Roles and visibility",
		Description: "What the client and the freelancer can each see and do.",
		Content: `# Roles

Your role is derived from the contract: the drafter is the client, the counterparty is the
freelancer. An asserted role that does not match is rejected with ACCESS_DENIED.

## Visibility

- Shared: title, terms, phases, messages, shared files, scheduled calls, progress.
- Private: your notes and private files. The other party never sees them.
- Ledger: total, released, pending and remaining amounts, derived from milestones.

## Permissions

Client: approve, request revision, record payment, cancel before activation.
Freelancer: start, submit, decline a sent contract.
Both: message, attach files, add notes, schedule calls, view activity.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
