// Package main runs the SafeCircle panic alert API.
//
// @title SafeCircle API
// @version 1.0
// @description Panic alert backend. An authenticated user presses the panic button and every
// @description emergency contact with a registered device receives a high priority push
// @description notification. Each delivered alert is recorded in the notification ledger.
// @description
// @description Protected routes expect `Authorization: Bearer <token>` obtained from `/auth/login`.
//
// @BasePath /api/v1
// @schemes http https
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT issued by /api/v1/auth/login, sent as "Bearer <token>".
//
// @tag.name Panic
// @tag.description Panic button fan-out
//
// @tag.name Contacts
// @tag.description Emergency contacts of the caller
//
// @tag.name Notifications
// @tag.description Notification ledger
//
// @tag.name Users
// @tag.description Registration, profile, device token and location
//
// @tag.name Auth
// @tag.description Login
package main
