// Package main provides a CLI tool for minting and inspecting talentgate tokens
// during local development. It signs with JWT_SIGNING_KEY, falling back to the
// dev key, so its tokens are useless against a production deployment.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	jwttoken "talentgate/internal/jwt_token"
	"talentgate/internal/platform/config"
	id "talentgate/pkg/domain"
)

type tokenOutput struct {
	AccessToken  string            `json:"access_token,omitempty"`
	RefreshToken string            `json:"refresh_token,omitempty"`
	ExpiresIn    string            `json:"expires_in"`
	Claims       map[string]any    `json:"claims,omitempty"`
	Usage        map[string]string `json:"usage,omitempty"`
}

func main() {
	cfg := config.FromEnv()

	accessCmd := flag.NewFlagSet("access", flag.ExitOnError)
	accessUserID := accessCmd.String("user-id", "", "User ID (UUID). Generated if empty.")
	accessSessionID := accessCmd.String("session-id", "", "Session ID (UUID). Omitted for a sessionless token.")
	accessEmail := accessCmd.String("email", "dev@example.com", "Email claim")
	accessUserType := accessCmd.String("user-type", "recruiter", "User type hint")
	accessTTL := accessCmd.Duration("ttl", cfg.Auth.AccessTokenTTL, "Token time-to-live")
	accessJSON := accessCmd.Bool("json", false, "Output as JSON")

	pairCmd := flag.NewFlagSet("pair", flag.ExitOnError)
	pairUserID := pairCmd.String("user-id", "", "User ID (UUID). Generated if empty.")
	pairRefreshTTL := pairCmd.Duration("refresh-ttl", cfg.Auth.RefreshTokenTTL, "Refresh token time-to-live")
	pairJSON := pairCmd.Bool("json", false, "Output as JSON")

	verifyCmd := flag.NewFlagSet("verify", flag.ExitOnError)
	verifyType := verifyCmd.String("type", string(jwttoken.TypeAccess), "Expected token type: access or refresh")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "access":
		_ = accessCmd.Parse(os.Args[2:])
		identity := jwttoken.Identity{
			UserID:   parseOrGenerateUserID(*accessUserID),
			Email:    *accessEmail,
			UserType: *accessUserType,
		}
		if *accessSessionID != "" {
			sid, err := id.ParseSessionID(*accessSessionID)
			exitOnError("session-id", err)
			identity.SessionID = sid
		}
		generateAccessToken(jwttoken.NewJWTService(cfg.Auth.JWTSigningKey), identity, *accessTTL, *accessJSON)
	case "pair":
		_ = pairCmd.Parse(os.Args[2:])
		svc := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, jwttoken.WithAccessTTL(cfg.Auth.AccessTokenTTL))
		generatePair(svc, parseOrGenerateUserID(*pairUserID), *pairRefreshTTL, *pairJSON)
	case "verify":
		_ = verifyCmd.Parse(os.Args[2:])
		if verifyCmd.NArg() != 1 {
			fmt.Fprintln(os.Stderr, "verify expects exactly one token argument")
			os.Exit(1)
		}
		verify(jwttoken.NewJWTService(cfg.Auth.JWTSigningKey), verifyCmd.Arg(0), jwttoken.TokenType(*verifyType))
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tokengen - Mint and inspect talentgate tokens

WARNING: Tokens are signed with JWT_SIGNING_KEY or the dev key.
         Only use for local development and testing.

Usage:
  tokengen <command> [flags]

Commands:
  access    Sign an access token
  pair      Sign an access/refresh pair (not bound to a session)
  verify    Verify a token and print its claims

Examples:
  # Sessionless access token, accepted when ALLOW_SESSIONLESS_TOKENS=true
  tokengen access -user-id "550e8400-e29b-41d4-a716-446655440000"

  # Access token bound to an existing session
  tokengen access -user-id "..." -session-id "..."

  # Check a refresh token
  tokengen verify -type refresh <token>

Use "tokengen <command> -h" for more information about a command.`)
}

func generateAccessToken(svc *jwttoken.JWTService, identity jwttoken.Identity, ttl time.Duration, jsonOutput bool) {
	token, jti, err := svc.IssueAccessToken(identity, ttl)
	exitOnError("sign token", err)

	if jsonOutput {
		printJSON(tokenOutput{
			AccessToken: token,
			ExpiresIn:   ttl.String(),
			Claims:      identityClaims(identity, jti),
			Usage:       map[string]string{"header": "Authorization: Bearer <token>"},
		})
		return
	}
	fmt.Println("Access Token")
	fmt.Println("============")
	fmt.Printf("Expires In:  %s\n", ttl)
	fmt.Printf("User ID:     %s\n", identity.UserID)
	if !identity.SessionID.IsNil() {
		fmt.Printf("Session ID:  %s\n", identity.SessionID)
	} else {
		fmt.Println("Session ID:  (none, sessionless)")
	}
	fmt.Printf("User Type:   %s\n", identity.UserType)
	fmt.Printf("JTI:         %s\n", jti)
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(token)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl -H \"Authorization: Bearer <token>\" http://localhost:8080/api/v1/auth/me")
}

func generatePair(svc *jwttoken.JWTService, userID id.UserID, refreshTTL time.Duration, jsonOutput bool) {
	pair, err := svc.IssuePair(jwttoken.Identity{UserID: userID}, refreshTTL)
	exitOnError("sign pair", err)

	if jsonOutput {
		printJSON(tokenOutput{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			ExpiresIn:    (time.Duration(pair.ExpiresIn) * time.Second).String(),
			Claims: map[string]any{
				"user_id":     userID.String(),
				"access_jti":  pair.AccessJTI,
				"refresh_jti": pair.RefreshJTI,
			},
		})
		return
	}
	fmt.Println("Token Pair")
	fmt.Println("==========")
	fmt.Printf("User ID:         %s\n", userID)
	fmt.Printf("Access expires:  %s\n", pair.AccessExpiresAt.Format(time.RFC3339))
	fmt.Printf("Refresh expires: %s\n", pair.RefreshExpiresAt.Format(time.RFC3339))
	fmt.Println()
	fmt.Println("Access Token:")
	fmt.Println(pair.AccessToken)
	fmt.Println()
	fmt.Println("Refresh Token:")
	fmt.Println(pair.RefreshToken)
}

func verify(svc *jwttoken.JWTService, token string, expected jwttoken.TokenType) {
	verified, err := svc.Verify(token, expected)
	exitOnError("verify", err)

	claims := identityClaims(verified.Identity, verified.JTI)
	claims["type"] = string(verified.Type)
	claims["issued_at"] = verified.IssuedAt.UTC().Format(time.RFC3339)
	claims["expires_at"] = verified.ExpiresAt.UTC().Format(time.RFC3339)
	printJSON(claims)
}

func identityClaims(identity jwttoken.Identity, jti string) map[string]any {
	claims := map[string]any{
		"user_id": identity.UserID.String(),
		"jti":     jti,
	}
	if identity.Email != "" {
		claims["email"] = identity.Email
	}
	if identity.UserType != "" {
		claims["user_type"] = identity.UserType
	}
	if !identity.SessionID.IsNil() {
		claims["session_id"] = identity.SessionID.String()
	}
	return claims
}

func parseOrGenerateUserID(input string) id.UserID {
	if input == "" {
		return id.NewUserID()
	}
	userID, err := id.ParseUserID(input)
	exitOnError("user-id", err)
	return userID
}

func exitOnError(what string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
		os.Exit(1)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}
