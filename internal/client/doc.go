// Package client is a typed wrapper around the coven backend REST API.
//
// # Overview
//
// A Client resolves the backend base URL, attaches the bearer token from
// its TokenSource and decodes JSON responses into the types in types.go.
// Every endpoint the console uses has one method:
//
//   - Auth: RequestOTP, VerifyOTP, Logout, Me, UpdateProfile, ChangePassword
//   - Admin: ListUsers, GetUser, UpdateUser, SetUserRole, SetUserStatus, SystemStats, UsageHistory
//   - Documents: ListDocuments, PendingDocuments, GetDocument, UploadDocument, UpdateDocument,
//     DeleteDocument, ApproveDocument, RejectDocument
//   - Collections: ListCollections, CreateCollection, GetCollection, UpdateCollection,
//     DeleteCollection, CollectionDocuments, AddCollectionDocument, RemoveCollectionDocument
//   - Tools: ListRAGTools, CreateRAGTool, GetRAGTool, UpdateRAGTool, DeleteRAGTool, ListTools
//   - MCP: ListMCPServers, GetMCPServer, CreateMCPServer, UpdateMCPServer, DeleteMCPServer, ToggleMCPServer
//   - LLM: ListLLMConfigs, ActiveLLMConfig, CreateLLMConfig, UpdateLLMConfig, DeleteLLMConfig,
//     ActivateLLMConfig, ResetLLMConfigs
//   - Sessions: ListSessions, GetSession, DeleteSession
//   - Chat: StreamChat
//
// # Errors
//
// Non-2xx responses become *APIError. Use errors.Is with ErrUnauthorized,
// ErrForbidden, ErrNotFound or ErrConflict to branch on status. A 401
// clears the stored token before the error is returned. FriendlyError
// turns any error into a sentence for the user.
//
// Form input is validated before a request is built, so a *validate.Error
// never costs a round trip.
//
// # Usage
//
//	c := client.New(client.Options{
//		Resolver: resolver,
//		Tokens:   sessions,
//		Breaker:  breaker,
//		Timeout:  cfg.API.Timeout,
//	})
//	me, err := c.Me(ctx)
package client
